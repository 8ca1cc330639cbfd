package mapper

import (
	"github.com/AlibekovAA/devicehub/internal/common/dto"
	userdomain "github.com/AlibekovAA/devicehub/internal/user/domain"
)

func UserToDTO(user userdomain.UserWithApp) dto.User {
	view := dto.User{
		GUID:           string(user.ID),
		Name:           user.Name,
		Role:           string(user.Role),
		IsBlocked:      user.IsBlocked,
		IsLogged:       user.IsLogged,
		ExpirationDate: user.ExpirationDate,
		CreatedAt:      user.CreatedAt,
	}
	if user.App != nil {
		view.UserApp = &dto.RunningApp{
			Name:    user.App.Name,
			StartAt: user.App.StartAt,
		}
	}
	return view
}

func UsersToDTO(users []userdomain.UserWithApp) []dto.User {
	result := make([]dto.User, len(users))
	for i, u := range users {
		result[i] = UserToDTO(u)
	}
	return result
}
