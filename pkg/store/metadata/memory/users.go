package memory

import (
	"github.com/google/uuid"
	"github.com/marmos91/dittodrive/pkg/store/metadata"
)

func (tx *memoryTx) GetUser(id uuid.UUID) (*metadata.User, error) {
	u, ok := tx.store.users[id]
	if !ok {
		return nil, metadata.NewNotFoundError("user", id.String())
	}
	return u.Clone(), nil
}

func (tx *memoryTx) GetUserByUsername(username string) (*metadata.User, error) {
	id, ok := tx.store.usernames[username]
	if !ok {
		return nil, metadata.NewNotFoundError("user", username)
	}
	return tx.GetUser(id)
}

func (tx *memoryTx) GetUserByEmail(email string) (*metadata.User, error) {
	id, ok := tx.store.emails[email]
	if !ok {
		return nil, metadata.NewNotFoundError("user", email)
	}
	return tx.GetUser(id)
}

func (tx *memoryTx) ListUsers() ([]*metadata.User, error) {
	out := make([]*metadata.User, 0, len(tx.store.users))
	for _, u := range tx.store.users {
		out = append(out, u.Clone())
	}
	return out, nil
}

func (tx *memoryTx) CreateUser(user *metadata.User) error {
	if err := tx.checkWrite("CreateUser"); err != nil {
		return err
	}
	s := tx.store

	if _, exists := s.users[user.ID]; exists {
		return metadata.NewAlreadyExistsError("user", user.ID.String())
	}
	if _, taken := s.usernames[user.Username]; taken {
		return metadata.NewAlreadyExistsError("username", user.Username)
	}
	if _, taken := s.emails[user.Email]; taken {
		return metadata.NewAlreadyExistsError("email", user.Email)
	}

	setEntry(tx, s.users, user.ID, user.Clone())
	setEntry(tx, s.usernames, user.Username, user.ID)
	setEntry(tx, s.emails, user.Email, user.ID)
	return nil
}

func (tx *memoryTx) PutUser(user *metadata.User) error {
	if err := tx.checkWrite("PutUser"); err != nil {
		return err
	}
	s := tx.store

	current, ok := s.users[user.ID]
	if !ok {
		return metadata.NewNotFoundError("user", user.ID.String())
	}

	if user.Username != current.Username {
		if _, taken := s.usernames[user.Username]; taken {
			return metadata.NewAlreadyExistsError("username", user.Username)
		}
		deleteEntry(tx, s.usernames, current.Username)
		setEntry(tx, s.usernames, user.Username, user.ID)
	}
	if user.Email != current.Email {
		if _, taken := s.emails[user.Email]; taken {
			return metadata.NewAlreadyExistsError("email", user.Email)
		}
		deleteEntry(tx, s.emails, current.Email)
		setEntry(tx, s.emails, user.Email, user.ID)
	}

	setEntry(tx, s.users, user.ID, user.Clone())
	return nil
}

func (tx *memoryTx) DeleteUser(id uuid.UUID) error {
	if err := tx.checkWrite("DeleteUser"); err != nil {
		return err
	}
	s := tx.store

	user, ok := s.users[id]
	if !ok {
		return metadata.NewNotFoundError("user", id.String())
	}

	// Owned nodes (DeleteNode cascades their grants)
	for nodeID, n := range s.nodes {
		if n.OwnerID == id {
			if err := tx.DeleteNode(nodeID); err != nil {
				return err
			}
		}
	}

	// Remaining grants where the user is owner or recipient
	for grantID, g := range s.grants {
		if g.OwnerID == id || g.RecipientID == id {
			tx.removeGrant(grantID, g)
		}
	}

	for nID, n := range s.notifications {
		if n.UserID == id {
			deleteEntry(tx, s.notifications, nID)
		}
	}

	for aID, a := range s.audit {
		if a.ActorID != nil && *a.ActorID == id {
			orphaned := a.Clone()
			orphaned.ActorID = nil
			setEntry(tx, s.audit, aID, orphaned)
		}
	}

	deleteEntry(tx, s.usernames, user.Username)
	deleteEntry(tx, s.emails, user.Email)
	deleteEntry(tx, s.users, id)
	return nil
}
