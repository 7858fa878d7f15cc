package shared

import "fmt"

// ReportLockKey builds redis keys guarding report background work.
func ReportLockKey(task string) string {
	return fmt.Sprintf("reports:lock:%s", task)
}
