package entities

import "time"

// Audit is the IsDeleted/ModifiedAt pair carried by every persisted entity.
//
// Soft delete is performed by repositories through MarkDeleted; entities never
// infer deletion from their own state and rows are never hard-deleted.
type Audit struct {
	isDeleted  bool
	createdAt  time.Time
	modifiedAt time.Time
}

func newAudit(now time.Time) Audit {
	return Audit{createdAt: now, modifiedAt: now}
}

// ReconstructAudit rebuilds audit fields from storage.
func ReconstructAudit(isDeleted bool, createdAt, modifiedAt time.Time) Audit {
	return Audit{isDeleted: isDeleted, createdAt: createdAt, modifiedAt: modifiedAt}
}

// IsDeleted reports whether the entity was soft-deleted.
func (a *Audit) IsDeleted() bool { return a.isDeleted }

// CreatedAt returns the creation timestamp.
func (a *Audit) CreatedAt() time.Time { return a.createdAt }

// ModifiedAt returns the last modification timestamp.
func (a *Audit) ModifiedAt() time.Time { return a.modifiedAt }

// MarkDeleted sets the soft-delete flag and bumps ModifiedAt.
func (a *Audit) MarkDeleted(at time.Time) {
	a.isDeleted = true
	a.modifiedAt = at
}

func (a *Audit) touch() {
	a.modifiedAt = time.Now().UTC()
}
