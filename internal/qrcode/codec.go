package qrcode

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"credential-service/internal/models"

	"github.com/google/uuid"
)

var (
	ErrInvalidFormat    = errors.New("missing credential namespace prefix")
	ErrMalformedPayload = errors.New("malformed credential payload")
	ErrMissingField     = errors.New("credential payload missing required field")
)

// Codec builds and parses the signed identity payload embedded in a QR
// image. The encoded form is "<namespace>:" + base64(JSON payload); the
// prefix lets scanners reject arbitrary QR content before parsing.
type Codec struct {
	namespace       string
	secret          []byte
	defaultValidity time.Duration
}

// NewCodec creates a codec signing with the given server-held secret.
// The secret must never be distributed to clients; a credential is only
// as trustworthy as the secrecy of this key.
func NewCodec(namespace string, secret []byte, defaultValidity time.Duration) *Codec {
	return &Codec{
		namespace:       namespace,
		secret:          secret,
		defaultValidity: defaultValidity,
	}
}

// wirePayload is the JSON shape inside the QR string. Field names are
// fixed by the scanner contract and are not negotiable.
type wirePayload struct {
	ID         string `json:"id"`
	UserID     string `json:"userId"`
	UserType   string `json:"userType"`
	SchoolID   string `json:"schoolId"`
	ValidUntil int64  `json:"validUntil"`
	Hash       string `json:"hash"`
}

// Issue creates a fresh credential for a subject and returns its
// encoded form. A validity of zero selects the configured default
// (identity cards run a year). Issuing never mutates an earlier
// credential; each call mints a new token id.
func (c *Codec) Issue(subjectID string, subjectType models.SubjectType, tenantID string, validity time.Duration) (string, *models.QRCredential, error) {
	if subjectID == "" || tenantID == "" {
		return "", nil, fmt.Errorf("subject id and tenant id are required")
	}
	if !subjectType.Valid() {
		return "", nil, fmt.Errorf("unknown subject type %q", subjectType)
	}
	if validity <= 0 {
		validity = c.defaultValidity
	}

	cred := &models.QRCredential{
		ID:          uuid.New().String(),
		SubjectID:   subjectID,
		SubjectType: subjectType,
		TenantID:    tenantID,
		ValidUntil:  time.Now().Add(validity).Truncate(time.Millisecond),
	}
	cred.IntegrityTag = c.Tag(cred)

	encoded, err := c.Encode(cred)
	if err != nil {
		return "", nil, err
	}
	return encoded, cred, nil
}

// Encode serializes an already-built credential.
func (c *Codec) Encode(cred *models.QRCredential) (string, error) {
	payload := wirePayload{
		ID:         cred.ID,
		UserID:     cred.SubjectID,
		UserType:   string(cred.SubjectType),
		SchoolID:   cred.TenantID,
		ValidUntil: cred.ValidUntil.UnixMilli(),
		Hash:       cred.IntegrityTag,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal credential: %w", err)
	}
	return c.namespace + ":" + base64.StdEncoding.EncodeToString(raw), nil
}

// Decode parses an encoded string back into a credential. It performs
// structural validation only; integrity, expiry, and tenant checks
// belong to the verifier.
func (c *Codec) Decode(encoded string) (*models.QRCredential, error) {
	body, ok := strings.CutPrefix(encoded, c.namespace+":")
	if !ok {
		return nil, ErrInvalidFormat
	}

	raw, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return nil, ErrMalformedPayload
	}

	var payload wirePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, ErrMalformedPayload
	}

	switch {
	case payload.ID == "":
		return nil, fmt.Errorf("%w: id", ErrMissingField)
	case payload.UserID == "":
		return nil, fmt.Errorf("%w: userId", ErrMissingField)
	case payload.SchoolID == "":
		return nil, fmt.Errorf("%w: schoolId", ErrMissingField)
	case payload.ValidUntil == 0:
		return nil, fmt.Errorf("%w: validUntil", ErrMissingField)
	case payload.Hash == "":
		return nil, fmt.Errorf("%w: hash", ErrMissingField)
	case !models.SubjectType(payload.UserType).Valid():
		return nil, fmt.Errorf("%w: userType", ErrMissingField)
	}

	return &models.QRCredential{
		ID:           payload.ID,
		SubjectID:    payload.UserID,
		SubjectType:  models.SubjectType(payload.UserType),
		TenantID:     payload.SchoolID,
		ValidUntil:   time.UnixMilli(payload.ValidUntil),
		IntegrityTag: payload.Hash,
	}, nil
}

// Tag computes the keyed digest over a credential's identity fields.
// The "|" separator keeps adjacent fields from gluing into a colliding
// concatenation.
func (c *Codec) Tag(cred *models.QRCredential) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(cred.ID))
	mac.Write([]byte{'|'})
	mac.Write([]byte(cred.SubjectID))
	mac.Write([]byte{'|'})
	mac.Write([]byte(cred.SubjectType))
	mac.Write([]byte{'|'})
	mac.Write([]byte(cred.TenantID))
	mac.Write([]byte{'|'})
	mac.Write([]byte(strconv.FormatInt(cred.ValidUntil.UnixMilli(), 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

// TagMatches recompares the embedded tag in constant time.
func (c *Codec) TagMatches(cred *models.QRCredential) bool {
	return hmac.Equal([]byte(c.Tag(cred)), []byte(cred.IntegrityTag))
}
