package httpapi

import (
	"errors"
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-diary/internal/diary"
	"github.com/i474232898/weather-diary/internal/weather"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their query parameter names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("query"); name != "" {
			return name
		}
		return f.Name
	})
	return v
}

// RegisterRoutes wires the diary handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, diaries *diary.Service) {
	app.Post("/create/diary", func(c *fiber.Ctx) error {
		var q dateQuery
		if err := q.bind(c); err != nil {
			return err
		}
		text, err := bodyText(c)
		if err != nil {
			return err
		}

		if _, err := diaries.Create(c.UserContext(), q.Date, text); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusOK)
	})

	app.Get("/read/diary", func(c *fiber.Ctx) error {
		var q dateQuery
		if err := q.bind(c); err != nil {
			return err
		}

		entries, err := diaries.Read(c.UserContext(), q.Date)
		if err != nil {
			return err
		}
		return c.JSON(toEntryResponses(entries))
	})

	app.Get("/read/diaries", func(c *fiber.Ctx) error {
		var q rangeQuery
		if err := q.bind(c); err != nil {
			return err
		}

		entries, err := diaries.ReadRange(c.UserContext(), q.Start, q.End)
		if err != nil {
			return err
		}
		return c.JSON(toEntryResponses(entries))
	})

	app.Put("/update/diary", func(c *fiber.Ctx) error {
		var q dateQuery
		if err := q.bind(c); err != nil {
			return err
		}
		text, err := bodyText(c)
		if err != nil {
			return err
		}

		if err := diaries.Update(c.UserContext(), q.Date, text); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusOK)
	})

	app.Delete("/delete/diary", func(c *fiber.Ctx) error {
		var q dateQuery
		if err := q.bind(c); err != nil {
			return err
		}

		if _, err := diaries.Delete(c.UserContext(), q.Date); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusOK)
	})
}

// entryResponse is the JSON form of a diary entry.
type entryResponse struct {
	ID          int64   `json:"id"`
	Weather     string  `json:"weather"`
	Icon        string  `json:"icon"`
	Temperature float64 `json:"temperature"`
	Text        string  `json:"text"`
	Date        string  `json:"date"`
}

func toEntryResponses(entries []diary.Entry) []entryResponse {
	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryResponse{
			ID:          e.ID,
			Weather:     e.Condition,
			Icon:        e.Icon,
			Temperature: e.Temperature,
			Text:        e.Text,
			Date:        weather.FormatDate(e.Date),
		})
	}
	return out
}

// dateQuery holds the date parameter shared by the single-date endpoints.
type dateQuery struct {
	Date time.Time `query:"date" validate:"required"`
}

func (q *dateQuery) bind(c *fiber.Ctx) error {
	d, err := parseDateParam(c, "date")
	if err != nil {
		return err
	}
	q.Date = d
	return validate.Struct(q)
}

// rangeQuery holds the parameters of the range endpoint.
type rangeQuery struct {
	Start time.Time `query:"startDate" validate:"required"`
	End   time.Time `query:"endDate" validate:"required,gtefield=Start"`
}

func (q *rangeQuery) bind(c *fiber.Ctx) error {
	start, err := parseDateParam(c, "startDate")
	if err != nil {
		return err
	}
	end, err := parseDateParam(c, "endDate")
	if err != nil {
		return err
	}
	q.Start, q.End = start, end
	return validate.Struct(q)
}

func parseDateParam(c *fiber.Ctx, name string) (time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return time.Time{}, fiber.NewError(fiber.StatusBadRequest, name+" query parameter is required")
	}
	d, err := weather.ParseDate(raw)
	if err != nil {
		return time.Time{}, fiber.NewError(fiber.StatusBadRequest, "invalid "+name+"; use YYYY-MM-DD")
	}
	return d, nil
}

func bodyText(c *fiber.Ctx) (string, error) {
	text := string(c.Body())
	if err := validate.Var(text, "required"); err != nil {
		return "", fiber.NewError(fiber.StatusBadRequest, "request body must contain the diary text")
	}
	return text, nil
}

// validationMessage renders the first failed constraint for clients.
func validationMessage(errs validator.ValidationErrors) string {
	if len(errs) == 0 {
		return "invalid request"
	}
	fe := errs[0]
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "gtefield":
		return fe.Field() + " must not be before startDate"
	default:
		return fe.Field() + " failed " + fe.Tag() + " validation"
	}
}

func isValidationError(err error) (validator.ValidationErrors, bool) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return verrs, true
	}
	return nil, false
}
