package analytichttp

import (
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/stockroom/stockroom/internal/analytics"
)

type validationError struct {
	fields map[string]string
}

func (e validationError) Error() string {
	names := make([]string, 0, len(e.fields))
	for name := range e.fields {
		names = append(names, name)
	}
	return "invalid query: " + strings.Join(names, ",")
}

type periodQuery struct {
	Period string `query:"period" validate:"omitempty,oneof=all daily weekly monthly yearly"`
	Date   string `query:"date" validate:"omitempty,datetime=2006-01-02"`
	Month  int    `query:"month" validate:"omitempty,min=1,max=12"`
	Year   int    `query:"year" validate:"omitempty,min=1970,max=9999"`
	Top    int    `query:"top" validate:"omitempty,min=1,max=100"`
}

type alertQuery struct {
	Level   string `query:"level" validate:"omitempty,oneof=out_of_stock critical very_low low"`
	Page    int    `query:"page" validate:"omitempty,min=1,max=100000"`
	PerPage int    `query:"per_page" validate:"omitempty,min=1,max=100"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return fld.Tag.Get("query")
	})
	return v
}

// intParams reads integer query parameters, recording a field error for any
// value that is present but not a number.
func intParams(r *http.Request, fields map[string]string, names ...string) []int {
	out := make([]int, len(names))
	for i, name := range names {
		raw := strings.TrimSpace(r.URL.Query().Get(name))
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			fields[name] = "numeric"
			continue
		}
		out[i] = n
	}
	return out
}

func (h *Handler) check(q interface{}, fields map[string]string) error {
	if err := h.validate.Struct(q); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			if _, seen := fields[fe.Field()]; !seen {
				fields[fe.Field()] = fe.Tag()
			}
		}
	}
	if len(fields) > 0 {
		return validationError{fields: fields}
	}
	return nil
}

// parsePeriod turns the query string into a selector. Missing daily, monthly
// and yearly parameters default to the current day, month or year.
func (h *Handler) parsePeriod(r *http.Request) (analytics.PeriodSelector, int, error) {
	fields := map[string]string{}
	ints := intParams(r, fields, "month", "year", "top")
	q := periodQuery{
		Period: strings.ToLower(strings.TrimSpace(r.URL.Query().Get("period"))),
		Date:   strings.TrimSpace(r.URL.Query().Get("date")),
		Month:  ints[0],
		Year:   ints[1],
		Top:    ints[2],
	}
	if err := h.check(q, fields); err != nil {
		return analytics.PeriodSelector{}, 0, err
	}

	now := h.now()
	year := q.Year
	if year == 0 {
		year = now.Year()
	}
	var sel analytics.PeriodSelector
	switch analytics.ParsePeriodKind(q.Period) {
	case analytics.PeriodDaily:
		day := now
		if q.Date != "" {
			parsed, err := time.ParseInLocation("2006-01-02", q.Date, now.Location())
			if err != nil {
				return analytics.PeriodSelector{}, 0, validationError{fields: map[string]string{"date": "datetime"}}
			}
			day = parsed
		}
		sel = analytics.Daily(day)
	case analytics.PeriodWeekly:
		sel = analytics.Weekly()
	case analytics.PeriodMonthly:
		month := time.Month(q.Month)
		if month == 0 {
			month = now.Month()
		}
		sel = analytics.Monthly(month, year)
	case analytics.PeriodYearly:
		sel = analytics.Yearly(year)
	}
	return sel, q.Top, nil
}

func (h *Handler) parseAlerts(r *http.Request) (alertQuery, error) {
	fields := map[string]string{}
	ints := intParams(r, fields, "page", "per_page")
	q := alertQuery{
		Level:   strings.ToLower(strings.TrimSpace(r.URL.Query().Get("level"))),
		Page:    ints[0],
		PerPage: ints[1],
	}
	if err := h.check(q, fields); err != nil {
		return alertQuery{}, err
	}
	return q, nil
}
