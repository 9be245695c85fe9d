package sqldb

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/marmos91/dittodrive/pkg/store/metadata"
)

func (tx *sqlTx) getUserWhere(label, query string, args ...any) (*metadata.User, error) {
	var m userModel
	found, err := tx.first(&m, query, args...)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, metadata.NewNotFoundError("user", label)
	}
	return m.toUser(), nil
}

func (tx *sqlTx) GetUser(id uuid.UUID) (*metadata.User, error) {
	return tx.getUserWhere(id.String(), "id = ?", id)
}

func (tx *sqlTx) GetUserByUsername(username string) (*metadata.User, error) {
	return tx.getUserWhere(username, "username = ?", username)
}

func (tx *sqlTx) GetUserByEmail(email string) (*metadata.User, error) {
	return tx.getUserWhere(email, "email = ?", email)
}

func (tx *sqlTx) ListUsers() ([]*metadata.User, error) {
	var rows []userModel
	if err := tx.db.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	out := make([]*metadata.User, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toUser())
	}
	return out, nil
}

func (tx *sqlTx) CreateUser(user *metadata.User) error {
	if err := tx.checkWrite("CreateUser"); err != nil {
		return err
	}

	if ok, err := tx.exists(&userModel{}, "id = ?", user.ID); err != nil {
		return err
	} else if ok {
		return metadata.NewAlreadyExistsError("user", user.ID.String())
	}
	if ok, err := tx.exists(&userModel{}, "username = ?", user.Username); err != nil {
		return err
	} else if ok {
		return metadata.NewAlreadyExistsError("username", user.Username)
	}
	if ok, err := tx.exists(&userModel{}, "email = ?", user.Email); err != nil {
		return err
	} else if ok {
		return metadata.NewAlreadyExistsError("email", user.Email)
	}

	if err := tx.db.Create(toUserModel(user)).Error; err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (tx *sqlTx) PutUser(user *metadata.User) error {
	if err := tx.checkWrite("PutUser"); err != nil {
		return err
	}

	current, err := tx.GetUser(user.ID)
	if err != nil {
		return err
	}
	if user.Username != current.Username {
		if ok, err := tx.exists(&userModel{}, "username = ?", user.Username); err != nil {
			return err
		} else if ok {
			return metadata.NewAlreadyExistsError("username", user.Username)
		}
	}
	if user.Email != current.Email {
		if ok, err := tx.exists(&userModel{}, "email = ?", user.Email); err != nil {
			return err
		} else if ok {
			return metadata.NewAlreadyExistsError("email", user.Email)
		}
	}

	if err := tx.db.Save(toUserModel(user)).Error; err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

func (tx *sqlTx) DeleteUser(id uuid.UUID) error {
	if err := tx.checkWrite("DeleteUser"); err != nil {
		return err
	}
	if _, err := tx.GetUser(id); err != nil {
		return err
	}

	steps := []struct {
		what string
		run  func() error
	}{
		{"grants on owned nodes", func() error {
			return tx.db.Where("node_id IN (?)", tx.db.Model(&nodeModel{}).Select("id").Where("owner_id = ?", id)).
				Delete(&grantModel{}).Error
		}},
		{"owned nodes", func() error {
			return tx.db.Where("owner_id = ?", id).Delete(&nodeModel{}).Error
		}},
		{"grants", func() error {
			return tx.db.Where("owner_id = ? OR recipient_id = ?", id, id).Delete(&grantModel{}).Error
		}},
		{"notifications", func() error {
			return tx.db.Where("user_id = ?", id).Delete(&notificationModel{}).Error
		}},
		{"audit actor", func() error {
			return tx.db.Model(&auditModel{}).Where("actor_id = ?", id).Update("actor_id", nil).Error
		}},
		{"user", func() error {
			return tx.db.Where("id = ?", id).Delete(&userModel{}).Error
		}},
	}

	for _, step := range steps {
		if err := step.run(); err != nil {
			return fmt.Errorf("failed to delete %s of user %s: %w", step.what, id, err)
		}
	}
	return nil
}
