package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/gdg-garage/facility-api/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type UserResponse struct {
	ID          uint        `json:"id"`
	Name        string      `json:"name"`
	Email       string      `json:"email"`
	Role        models.Role `json:"role"`
	ApartmentNo string      `json:"apartment_no"`
	Avatar      string      `json:"avatar,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

func NewUserResponse(u models.User) UserResponse {
	return UserResponse{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		Role:        u.Role,
		ApartmentNo: u.ApartmentNo,
		Avatar:      u.Avatar,
		CreatedAt:   u.CreatedAt,
	}
}

type RegisterRequest struct {
	Body struct {
		Name        string `json:"name" minLength:"1" maxLength:"120" doc:"Full name"`
		Email       string `json:"email" format:"email" doc:"Login e-mail"`
		Password    string `json:"password" minLength:"8" doc:"Password, at least 8 characters"`
		ApartmentNo string `json:"apartment_no,omitempty" maxLength:"32" doc:"Apartment number"`
	}
}

type RegisterResponse struct {
	Body struct {
		Message string       `json:"message"`
		User    UserResponse `json:"user"`
	}
}

// HandleRegister creates a resident account. Administrators are provisioned
// out of band, never through self-registration.
func (h *AuthHandler) HandleRegister(ctx context.Context, input *RegisterRequest) (*RegisterResponse, error) {
	hash, err := HashPassword(input.Body.Password, h.bcryptCost())
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to hash password")
	}

	user := models.User{
		Name:         strings.TrimSpace(input.Body.Name),
		Email:        strings.ToLower(strings.TrimSpace(input.Body.Email)),
		PasswordHash: hash,
		Role:         models.RoleResident,
		ApartmentNo:  strings.TrimSpace(input.Body.ApartmentNo),
	}

	if err := h.db.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, huma.Error409Conflict("User already exists")
		}
		h.logger.Error("Failed to register user", zap.Error(err))
		return nil, huma.Error500InternalServerError("Failed to register user")
	}

	h.logger.Info("User registered", zap.Uint("user_id", user.ID))

	res := &RegisterResponse{}
	res.Body.Message = "User registered"
	res.Body.User = NewUserResponse(user)
	return res, nil
}

type LoginRequest struct {
	Body struct {
		Email    string `json:"email" doc:"Login e-mail"`
		Password string `json:"password" doc:"Password"`
	}
}

type LoginResponse struct {
	SetCookie http.Cookie `header:"Set-Cookie"`
	Body      struct {
		Token string       `json:"token" doc:"Bearer token for the Authorization header"`
		User  UserResponse `json:"user"`
	}
}

func (h *AuthHandler) HandleLogin(ctx context.Context, input *LoginRequest) (*LoginResponse, error) {
	var user models.User
	err := h.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(input.Body.Email))).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, huma.Error404NotFound("User not found")
	}
	if err != nil {
		return nil, huma.Error500InternalServerError("Database error")
	}

	if user.PasswordHash == "" || !VerifyPassword(user.PasswordHash, input.Body.Password) {
		return nil, huma.Error401Unauthorized("Invalid credentials")
	}

	token, err := h.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to generate token")
	}

	res := &LoginResponse{SetCookie: *h.sessionCookie(token)}
	res.Body.Token = token
	res.Body.User = NewUserResponse(user)
	return res, nil
}

type MeResponse struct {
	Body UserResponse
}

func (h *AuthHandler) HandleMe(ctx context.Context, input *struct{}) (*MeResponse, error) {
	p, err := CurrentUser(ctx)
	if err != nil {
		return nil, err
	}

	var user models.User
	if err := h.db.WithContext(ctx).First(&user, p.UserID).Error; err != nil {
		return nil, huma.Error404NotFound("User not found")
	}

	return &MeResponse{Body: NewUserResponse(user)}, nil
}

type UpdateMeRequest struct {
	Body struct {
		Name        *string `json:"name,omitempty" minLength:"1" maxLength:"120"`
		ApartmentNo *string `json:"apartment_no,omitempty" maxLength:"32"`
	}
}

// HandleUpdateMe changes only the profile fields that are present.
func (h *AuthHandler) HandleUpdateMe(ctx context.Context, input *UpdateMeRequest) (*MeResponse, error) {
	p, err := CurrentUser(ctx)
	if err != nil {
		return nil, err
	}

	var user models.User
	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&user, p.UserID).Error; err != nil {
			return err
		}
		updates := map[string]any{}
		if input.Body.Name != nil {
			user.Name = strings.TrimSpace(*input.Body.Name)
			updates["name"] = user.Name
		}
		if input.Body.ApartmentNo != nil {
			user.ApartmentNo = strings.TrimSpace(*input.Body.ApartmentNo)
			updates["apartment_no"] = user.ApartmentNo
		}
		if len(updates) == 0 {
			return nil
		}
		return tx.Model(&user).Updates(updates).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, huma.Error404NotFound("User not found")
	}
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to update profile")
	}

	return &MeResponse{Body: NewUserResponse(user)}, nil
}

// EnsureAdmin provisions the administrator account named by configuration.
// An existing user with that e-mail is promoted; the password is only set
// when the account is created.
func (h *AuthHandler) EnsureAdmin(ctx context.Context, email, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	return h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		err := tx.Where("email = ?", email).First(&user).Error
		if err == nil {
			if user.Role == models.RoleAdmin {
				return nil
			}
			h.logger.Info("Promoting user to administrator", zap.Uint("user_id", user.ID))
			return tx.Model(&user).Update("role", models.RoleAdmin).Error
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if len(password) < 8 {
			return errors.New("ADMIN_PASSWORD must be at least 8 characters")
		}
		hash, err := HashPassword(password, h.bcryptCost())
		if err != nil {
			return err
		}
		user = models.User{
			Name:         "Administrator",
			Email:        email,
			PasswordHash: hash,
			Role:         models.RoleAdmin,
		}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		h.logger.Info("Administrator created", zap.Uint("user_id", user.ID))
		return nil
	})
}
