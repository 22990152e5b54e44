package httpserver

import (
	"errors"
	"strings"

	"github.com/dmitrijs2005/webshelf/internal/server/models"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

const (
	minPasswordLength = 8
	maxPasswordLength = 128
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r registerRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(2, 50)),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(minPasswordLength, maxPasswordLength)),
	)
}

type registerResponse struct {
	Message string `json:"message"`
	UserID  string `json:"user_id"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r loginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

type createUserRequest struct {
	registerRequest
	Role string `json:"role"`
}

func (r createUserRequest) Validate() error {
	err := r.registerRequest.Validate()
	roleErr := validation.Validate(r.Role, validation.In(models.RoleUser, models.RoleAdmin))
	if roleErr == nil {
		return err
	}

	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		if err != nil {
			return err
		}
		verrs = validation.Errors{}
	}
	verrs["role"] = roleErr
	return verrs
}

// updateUserRequest is a partial update; absent fields stay unchanged.
type updateUserRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
	Role  *string `json:"role"`
}

var notBlank = validation.By(func(value any) error {
	if s, ok := value.(*string); ok && s != nil && strings.TrimSpace(*s) == "" {
		return errors.New("cannot be blank")
	}
	return nil
})

func (r updateUserRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, notBlank, validation.Length(2, 50)),
		validation.Field(&r.Email, notBlank, is.Email),
		validation.Field(&r.Role, notBlank, validation.In(models.RoleUser, models.RoleAdmin)),
	)
}

func (r updateUserRequest) toModel() models.UserUpdate {
	return models.UserUpdate{Name: r.Name, Email: r.Email, Role: r.Role}
}
