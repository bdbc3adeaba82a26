package entities

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Haleralex/marketbridge/internal/domain/errors"
)

// Factory is a seller. Settlement money for its line items goes to the owner user.
type Factory struct {
	id          uuid.UUID
	ownerUserID uuid.UUID
	name        string
	Audit
}

// NewFactory creates a seller profile owned by ownerUserID.
func NewFactory(ownerUserID uuid.UUID, name string) (*Factory, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.NewValidationError("name", "factory name is required")
	}
	if ownerUserID == uuid.Nil {
		return nil, errors.NewValidationError("owner_user_id", "owner user is required")
	}

	return &Factory{
		id:          uuid.New(),
		ownerUserID: ownerUserID,
		name:        name,
		Audit:       newAudit(time.Now().UTC()),
	}, nil
}

// ReconstructFactory rebuilds a Factory from storage.
func ReconstructFactory(id, ownerUserID uuid.UUID, name string, audit Audit) *Factory {
	return &Factory{id: id, ownerUserID: ownerUserID, name: name, Audit: audit}
}

func (f *Factory) ID() uuid.UUID          { return f.id }
func (f *Factory) OwnerUserID() uuid.UUID { return f.ownerUserID }
func (f *Factory) Name() string           { return f.name }
