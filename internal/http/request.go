package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"spendbook/internal/aggregate"
	"spendbook/internal/core"
)

// maxBodyBytes leaves room for a few inline images.
const maxBodyBytes = 8 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type categoryRequest struct {
	Name  string `json:"name" validate:"required,max=100"`
	Color string `json:"color" validate:"omitempty,hexcolor"`
	Icon  string `json:"icon" validate:"max=16"`
}

func (req categoryRequest) input() core.CategoryInput {
	return core.CategoryInput{
		Name:  sanitizeInput(req.Name),
		Color: sanitizeInput(req.Color),
		Icon:  sanitizeInput(req.Icon),
	}
}

type categoryPatchRequest struct {
	Name  *string `json:"name" validate:"omitnil,max=100"`
	Color *string `json:"color" validate:"omitempty,hexcolor"`
	Icon  *string `json:"icon" validate:"omitnil,max=16"`
}

func (req categoryPatchRequest) patch() core.CategoryPatch {
	return core.CategoryPatch{
		Name:  sanitizePtr(req.Name),
		Color: sanitizePtr(req.Color),
		Icon:  sanitizePtr(req.Icon),
	}
}

type expenseRequest struct {
	Title       string     `json:"title" validate:"required,max=200"`
	Amount      core.Money `json:"amount"`
	Date        core.Date  `json:"date"`
	CategoryIDs []string   `json:"categoryIds" validate:"required,min=1,dive,required"`
	Description string     `json:"description" validate:"max=2000"`
	Images      [][]byte   `json:"images" validate:"max=10"`
}

func (req expenseRequest) input() core.ExpenseInput {
	return core.ExpenseInput{
		Title:       sanitizeInput(req.Title),
		Amount:      req.Amount,
		Date:        req.Date,
		CategoryIDs: req.CategoryIDs,
		Description: sanitizeInput(req.Description),
		Images:      req.Images,
	}
}

type expensePatchRequest struct {
	Title       *string     `json:"title" validate:"omitnil,max=200"`
	Amount      *core.Money `json:"amount"`
	Date        *core.Date  `json:"date"`
	CategoryIDs *[]string   `json:"categoryIds" validate:"omitnil,min=1,dive,required"`
	Description *string     `json:"description" validate:"omitnil,max=2000"`
	Images      *[][]byte   `json:"images" validate:"omitnil,max=10"`
}

func (req expensePatchRequest) patch() core.ExpensePatch {
	return core.ExpensePatch{
		Title:       sanitizePtr(req.Title),
		Amount:      req.Amount,
		Date:        req.Date,
		CategoryIDs: req.CategoryIDs,
		Description: sanitizePtr(req.Description),
		Images:      req.Images,
	}
}

type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string { return e.msg }

// decodeJSON reads exactly one JSON object into dst and runs the struct
// validation rules on it.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var (
			syntaxErr *json.SyntaxError
			typeErr   *json.UnmarshalTypeError
			maxErr    *http.MaxBytesError
		)
		switch {
		case errors.Is(err, core.ErrInvalidAmount), errors.Is(err, core.ErrNegativeAmount), errors.Is(err, core.ErrAmountTooLarge):
			return core.Invalid("amount", err)
		case errors.Is(err, core.ErrInvalidDate):
			return core.Invalid("date", err)
		case errors.As(err, &typeErr):
			return core.Invalid(typeErr.Field, fmt.Errorf("must be a %s", typeErr.Type))
		case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
			return &badRequestError{msg: "malformed JSON body"}
		case errors.Is(err, io.EOF):
			return &badRequestError{msg: "request body is empty"}
		case errors.As(err, &maxErr):
			return &badRequestError{msg: "request body too large"}
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			return &badRequestError{msg: strings.TrimPrefix(err.Error(), "json: ")}
		default:
			return &badRequestError{msg: "invalid request body"}
		}
	}
	if dec.More() {
		return &badRequestError{msg: "request body must contain a single JSON object"}
	}
	return validate.Struct(dst)
}

// parseExpenseQuery reads q, from, to, sort and order.
func parseExpenseQuery(r *http.Request) (aggregate.ExpenseQuery, error) {
	q := r.URL.Query()
	rng, err := parseDateRange(r)
	if err != nil {
		return aggregate.ExpenseQuery{}, err
	}
	key, err := aggregate.ParseSortKey(q.Get("sort"))
	if err != nil {
		return aggregate.ExpenseQuery{}, err
	}
	order, err := aggregate.ParseSortOrder(q.Get("order"))
	if err != nil {
		return aggregate.ExpenseQuery{}, err
	}
	return aggregate.ExpenseQuery{
		Term:  sanitizeInput(q.Get("q")),
		Range: rng,
		Sort:  key,
		Order: order,
	}, nil
}

func parseDateRange(r *http.Request) (aggregate.DateRange, error) {
	var rng aggregate.DateRange
	for _, p := range []struct {
		name string
		dst  *core.Date
	}{{"from", &rng.From}, {"to", &rng.To}} {
		v := strings.TrimSpace(r.URL.Query().Get(p.name))
		if v == "" {
			continue
		}
		d, err := core.ParseDate(v)
		if err != nil {
			return aggregate.DateRange{}, core.Invalid(p.name, err)
		}
		*p.dst = d
	}
	return rng, rng.Validate()
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

func sanitizePtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := sanitizeInput(*s)
	return &v
}
