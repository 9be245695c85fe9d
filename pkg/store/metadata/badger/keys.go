package badger

import (
	"bytes"

	"github.com/google/uuid"
)

// Database Key Namespace Design
// ==============================
//
// BadgerDB is a key-value store, so each relation lives under its own key
// prefix, and secondary lookups (children of a folder, grants of a node,
// notifications of a user) are served by index keys whose prefix can be
// range-scanned.
//
// Data Type              Prefix  Key Format                              Value
// ==============================================================================
// User                   "u:"    u:<userID>                              User (JSON)
// Username index         "un:"   un:<username>                           userID (16 bytes)
// Email index            "ue:"   ue:<email>                              userID (16 bytes)
// Node                   "n:"    n:<nodeID>                              Node (JSON)
// Children index         "nc:"   nc:<ownerID>:<parentID>:<nodeID>        empty
// Children version       "nv:"   nv:<ownerID>:<parentID>                 nodeID of last change
// Owner index            "no:"   no:<ownerID>:<nodeID>                   empty
// Grant                  "g:"    g:<grantID>                             ShareGrant (JSON)
// Grant pair index       "gn:"   gn:<nodeID>:<recipientID>               grantID (16 bytes)
// Grants by owner        "go:"   go:<ownerID>:<grantID>                  empty
// Grants by recipient    "gr:"   gr:<recipientID>:<grantID>              empty
// Notification           "m:"    m:<notificationID>                      Notification (JSON)
// Notifications by user  "mu:"   mu:<userID>:<notificationID>            empty
// Audit entry            "a:"    a:<entryID>                             AuditEntry (JSON)
// Audit by actor         "aa:"   aa:<actorID>:<entryID>                  empty
// Announcement           "an:"   an:<announcementID>                     Announcement (JSON)
//
// Notes:
//   - Root-level nodes use uuid.Nil as <parentID> in the children index.
//   - The pair index "gn:" doubles as the by-node index: scanning
//     "gn:<nodeID>:" yields every grant on the node.
//   - Badger only detects conflicts on keys a transaction actually read, so a
//     child inserted under a folder is invisible to a concurrent prefix scan
//     of "nc:". Every child-set change rewrites the folder's "nv:" key and
//     ListChildren reads it, turning such phantoms into commit conflicts.
//   - Index keys carry IDs in canonical 36-char string form so that a
//     prefix scan up to the last ':' is unambiguous.
//   - No prefix is a prefix of another prefix's first segment, so scans over
//     "n:" never see "nc:" keys and so on.

const (
	prefixUser          = "u:"
	prefixUsername      = "un:"
	prefixEmail         = "ue:"
	prefixNode          = "n:"
	prefixChildren      = "nc:"
	prefixChildVersion  = "nv:"
	prefixOwnerNodes    = "no:"
	prefixGrant         = "g:"
	prefixGrantPair     = "gn:"
	prefixGrantOwner    = "go:"
	prefixGrantRecip    = "gr:"
	prefixNotification  = "m:"
	prefixNotifyUser    = "mu:"
	prefixAudit         = "a:"
	prefixAuditActor    = "aa:"
	prefixAnnouncement  = "an:"
)

func join(parts ...string) []byte {
	var b bytes.Buffer
	for i, p := range parts {
		if i > 0 {
			b.WriteByte(':')
		}
		b.WriteString(p)
	}
	return b.Bytes()
}

func keyUser(id uuid.UUID) []byte {
	return []byte(prefixUser + id.String())
}

func keyUsername(username string) []byte {
	return []byte(prefixUsername + username)
}

func keyEmail(email string) []byte {
	return []byte(prefixEmail + email)
}

func keyNode(id uuid.UUID) []byte {
	return []byte(prefixNode + id.String())
}

func keyChild(ownerID, parentID, nodeID uuid.UUID) []byte {
	return []byte(prefixChildren + string(join(ownerID.String(), parentID.String(), nodeID.String())))
}

func keyChildrenPrefix(ownerID, parentID uuid.UUID) []byte {
	return []byte(prefixChildren + string(join(ownerID.String(), parentID.String(), "")))
}

func keyChildVersion(ownerID, parentID uuid.UUID) []byte {
	return []byte(prefixChildVersion + string(join(ownerID.String(), parentID.String())))
}

func keyOwnerNode(ownerID, nodeID uuid.UUID) []byte {
	return []byte(prefixOwnerNodes + string(join(ownerID.String(), nodeID.String())))
}

func keyOwnerNodesPrefix(ownerID uuid.UUID) []byte {
	return []byte(prefixOwnerNodes + ownerID.String() + ":")
}

func keyGrant(id uuid.UUID) []byte {
	return []byte(prefixGrant + id.String())
}

func keyGrantPair(nodeID, recipientID uuid.UUID) []byte {
	return []byte(prefixGrantPair + string(join(nodeID.String(), recipientID.String())))
}

func keyGrantPairPrefix(nodeID uuid.UUID) []byte {
	return []byte(prefixGrantPair + nodeID.String() + ":")
}

func keyGrantOwner(ownerID, grantID uuid.UUID) []byte {
	return []byte(prefixGrantOwner + string(join(ownerID.String(), grantID.String())))
}

func keyGrantOwnerPrefix(ownerID uuid.UUID) []byte {
	return []byte(prefixGrantOwner + ownerID.String() + ":")
}

func keyGrantRecipient(recipientID, grantID uuid.UUID) []byte {
	return []byte(prefixGrantRecip + string(join(recipientID.String(), grantID.String())))
}

func keyGrantRecipientPrefix(recipientID uuid.UUID) []byte {
	return []byte(prefixGrantRecip + recipientID.String() + ":")
}

func keyNotification(id uuid.UUID) []byte {
	return []byte(prefixNotification + id.String())
}

func keyNotifyUser(userID, notificationID uuid.UUID) []byte {
	return []byte(prefixNotifyUser + string(join(userID.String(), notificationID.String())))
}

func keyNotifyUserPrefix(userID uuid.UUID) []byte {
	return []byte(prefixNotifyUser + userID.String() + ":")
}

func keyAudit(id uuid.UUID) []byte {
	return []byte(prefixAudit + id.String())
}

func keyAuditActor(actorID, entryID uuid.UUID) []byte {
	return []byte(prefixAuditActor + string(join(actorID.String(), entryID.String())))
}

func keyAuditActorPrefix(actorID uuid.UUID) []byte {
	return []byte(prefixAuditActor + actorID.String() + ":")
}

func keyAnnouncement(id uuid.UUID) []byte {
	return []byte(prefixAnnouncement + id.String())
}

// lastIDSegment parses the trailing UUID of an index key.
func lastIDSegment(key []byte) (uuid.UUID, error) {
	idx := bytes.LastIndexByte(key, ':')
	return uuid.ParseBytes(key[idx+1:])
}
