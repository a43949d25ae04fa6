package validation

import (
	"errors"
	"strings"

	"github.com/clickfit/clickfit/internal/model"
)

// ValidateUserType validates the account type against the known roles
func ValidateUserType(userType string) error {
	switch strings.TrimSpace(userType) {
	case model.UserTypeUser, model.UserTypeAdmin, model.UserTypeTrainer:
		return nil
	case "":
		return errors.New("user type is required")
	}
	return errors.New("user type must be one of user, admin, trainer")
}
