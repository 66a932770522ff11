package handlers

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/grievance-desk/sla-service/pkg/util"
)

var validate = validator.New()

// decodeAndValidate parses the JSON body into req and checks its tags.
func decodeAndValidate(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	if err := validate.Struct(req); err != nil {
		details := map[string]any{}
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				details[fe.Field()] = fe.Tag()
			}
		}
		return util.NewValidationError("validation failed", details)
	}
	return nil
}

// issueIDParam returns the :id path parameter. Malformed ids are reported as
// a missing issue instead of reaching storage.
func issueIDParam(c *fiber.Ctx) (string, error) {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return "", util.NewNotFound("issue", map[string]any{"issue_id": id})
	}
	return id, nil
}
