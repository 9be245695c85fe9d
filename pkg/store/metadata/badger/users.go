package badger

import (
	"github.com/google/uuid"
	"github.com/marmos91/dittodrive/pkg/store/metadata"
)

func (tx *badgerTx) GetUser(id uuid.UUID) (*metadata.User, error) {
	u, found, err := getJSON[metadata.User](tx, keyUser(id))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, metadata.NewNotFoundError("user", id.String())
	}
	return u, nil
}

func (tx *badgerTx) GetUserByUsername(username string) (*metadata.User, error) {
	id, found, err := tx.getID(keyUsername(username))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, metadata.NewNotFoundError("user", username)
	}
	return tx.GetUser(id)
}

func (tx *badgerTx) GetUserByEmail(email string) (*metadata.User, error) {
	id, found, err := tx.getID(keyEmail(email))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, metadata.NewNotFoundError("user", email)
	}
	return tx.GetUser(id)
}

func (tx *badgerTx) ListUsers() ([]*metadata.User, error) {
	return scanJSON[metadata.User](tx, []byte(prefixUser))
}

func (tx *badgerTx) CreateUser(user *metadata.User) error {
	if err := tx.checkWrite("CreateUser"); err != nil {
		return err
	}

	if ok, err := tx.exists(keyUser(user.ID)); err != nil {
		return err
	} else if ok {
		return metadata.NewAlreadyExistsError("user", user.ID.String())
	}
	if ok, err := tx.exists(keyUsername(user.Username)); err != nil {
		return err
	} else if ok {
		return metadata.NewAlreadyExistsError("username", user.Username)
	}
	if ok, err := tx.exists(keyEmail(user.Email)); err != nil {
		return err
	} else if ok {
		return metadata.NewAlreadyExistsError("email", user.Email)
	}

	if err := putJSON(tx, keyUser(user.ID), user); err != nil {
		return err
	}
	if err := tx.setID(keyUsername(user.Username), user.ID); err != nil {
		return err
	}
	return tx.setID(keyEmail(user.Email), user.ID)
}

func (tx *badgerTx) PutUser(user *metadata.User) error {
	if err := tx.checkWrite("PutUser"); err != nil {
		return err
	}

	current, err := tx.GetUser(user.ID)
	if err != nil {
		return err
	}

	if user.Username != current.Username {
		if ok, err := tx.exists(keyUsername(user.Username)); err != nil {
			return err
		} else if ok {
			return metadata.NewAlreadyExistsError("username", user.Username)
		}
		if err := tx.del(keyUsername(current.Username)); err != nil {
			return err
		}
		if err := tx.setID(keyUsername(user.Username), user.ID); err != nil {
			return err
		}
	}
	if user.Email != current.Email {
		if ok, err := tx.exists(keyEmail(user.Email)); err != nil {
			return err
		} else if ok {
			return metadata.NewAlreadyExistsError("email", user.Email)
		}
		if err := tx.del(keyEmail(current.Email)); err != nil {
			return err
		}
		if err := tx.setID(keyEmail(user.Email), user.ID); err != nil {
			return err
		}
	}

	return putJSON(tx, keyUser(user.ID), user)
}

func (tx *badgerTx) DeleteUser(id uuid.UUID) error {
	if err := tx.checkWrite("DeleteUser"); err != nil {
		return err
	}

	user, err := tx.GetUser(id)
	if err != nil {
		return err
	}

	// Owned nodes, each cascading its grants
	nodeIDs, err := tx.scanIDs(keyOwnerNodesPrefix(id))
	if err != nil {
		return err
	}
	for _, nodeID := range nodeIDs {
		if err := tx.DeleteNode(nodeID); err != nil && !metadata.IsNotFound(err) {
			return err
		}
	}

	// Grants the user created on nodes already gone, and grants received
	for _, prefix := range [][]byte{keyGrantOwnerPrefix(id), keyGrantRecipientPrefix(id)} {
		grantIDs, err := tx.scanIDs(prefix)
		if err != nil {
			return err
		}
		for _, grantID := range grantIDs {
			if err := tx.DeleteGrant(grantID); err != nil && !metadata.IsNotFound(err) {
				return err
			}
		}
	}

	notificationIDs, err := tx.scanIDs(keyNotifyUserPrefix(id))
	if err != nil {
		return err
	}
	for _, nID := range notificationIDs {
		if err := tx.DeleteNotification(nID); err != nil && !metadata.IsNotFound(err) {
			return err
		}
	}

	// Keep audit entries, detached from the deleted actor
	entryIDs, err := tx.scanIDs(keyAuditActorPrefix(id))
	if err != nil {
		return err
	}
	for _, entryID := range entryIDs {
		entry, found, err := getJSON[metadata.AuditEntry](tx, keyAudit(entryID))
		if err != nil {
			return err
		}
		if found {
			entry.ActorID = nil
			if err := putJSON(tx, keyAudit(entryID), entry); err != nil {
				return err
			}
		}
		if err := tx.del(keyAuditActor(id, entryID)); err != nil {
			return err
		}
	}

	if err := tx.del(keyUsername(user.Username)); err != nil {
		return err
	}
	if err := tx.del(keyEmail(user.Email)); err != nil {
		return err
	}
	return tx.del(keyUser(id))
}
