package response

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/aine1100/pixbay-backend/pkg/errors"
)

func doRequest(t *testing.T, app *fiber.App, method, path string) (*Response, int) {
	t.Helper()

	req := httptest.NewRequest(method, path, nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if len(body) == 0 {
		return nil, resp.StatusCode
	}

	var envelope Response
	if err := json.Unmarshal(body, &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v (body: %s)", err, body)
	}
	return &envelope, resp.StatusCode
}

func TestSuccess(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return Success(c, fiber.Map{"booking_id": "bk-1"})
	})

	envelope, status := doRequest(t, app, "GET", "/")
	if status != 200 {
		t.Errorf("Status = %v, want 200", status)
	}
	if envelope.Error != nil {
		t.Errorf("Error should be nil, got %+v", envelope.Error)
	}
	data, ok := envelope.Data.(map[string]any)
	if !ok || data["booking_id"] != "bk-1" {
		t.Errorf("unexpected data: %+v", envelope.Data)
	}
	if envelope.Meta.RequestID == "" {
		t.Error("Meta.RequestID should be set")
	}
}

func TestCreated(t *testing.T) {
	app := fiber.New()
	app.Post("/", func(c *fiber.Ctx) error {
		return Created(c, fiber.Map{"id": "new"})
	})

	_, status := doRequest(t, app, "POST", "/")
	if status != 201 {
		t.Errorf("Status = %v, want 201", status)
	}
}

func TestNoContent(t *testing.T) {
	app := fiber.New()
	app.Delete("/", func(c *fiber.Ctx) error {
		return NoContent(c)
	})

	_, status := doRequest(t, app, "DELETE", "/")
	if status != 204 {
		t.Errorf("Status = %v, want 204", status)
	}
}

func TestPaginated(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return Paginated(c, []string{"a", "b"}, 1, 2, 5)
	})

	envelope, status := doRequest(t, app, "GET", "/")
	if status != 200 {
		t.Errorf("Status = %v, want 200", status)
	}

	raw, _ := json.Marshal(envelope.Data)
	var data PaginatedData
	if err := json.Unmarshal(raw, &data); err != nil {
		t.Fatalf("unmarshal paginated data: %v", err)
	}

	if data.Pagination.Total != 5 {
		t.Errorf("Total = %v, want 5", data.Pagination.Total)
	}
	if data.Pagination.TotalPages != 3 {
		t.Errorf("TotalPages = %v, want 3", data.Pagination.TotalPages)
	}
	if !data.Pagination.HasMore {
		t.Error("HasMore should be true on page 1 of 3")
	}
}

func TestErrorHandler_AppError(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Get("/", func(c *fiber.Ctx) error {
		return apperrors.ErrBookingNotFound
	})

	envelope, status := doRequest(t, app, "GET", "/")
	if status != 404 {
		t.Errorf("Status = %v, want 404", status)
	}
	if envelope.Error == nil {
		t.Fatal("Error body should be set")
	}
	if envelope.Error.Code != "BOOKING_NOT_FOUND" {
		t.Errorf("Code = %v, want BOOKING_NOT_FOUND", envelope.Error.Code)
	}
}

func TestErrorHandler_UnknownError(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Get("/", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusTeapot, "teapot")
	})

	envelope, status := doRequest(t, app, "GET", "/")
	if status != 418 {
		t.Errorf("Status = %v, want 418", status)
	}
	if envelope.Error == nil {
		t.Fatal("Error body should be set")
	}
}
