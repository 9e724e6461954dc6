// Package services holds the business rules that span several repositories:
// membership management with last-privileged protection, the read-only
// aggregations (activity feed, highlights, profiles) and the best-effort
// notification and audit writers.
package services

import (
	"context"
	"errors"

	"github.com/communityhub/platform/internal/access"
	"github.com/communityhub/platform/internal/db/models"
	"github.com/communityhub/platform/internal/db/repositories"
)

// Membership management failures
var (
	ErrInvalidRole    = errors.New("invalid role")
	ErrMemberNotFound = errors.New("member not found")
	ErrForbidden      = errors.New("insufficient permission to manage this member")
	ErrLastPrivileged = errors.New("cannot remove the last privileged administrator")
)

// MembershipService changes and removes community memberships
type MembershipService struct {
	tenants *repositories.TenantRepository
}

// NewMembershipService creates a new MembershipService
func NewMembershipService(tenants *repositories.TenantRepository) *MembershipService {
	return &MembershipService{tenants: tenants}
}

// ChangeRole moves userID to role. The updated membership and its previous role are returned.
func (s *MembershipService) ChangeRole(ctx context.Context, actor access.EffectiveRole, tenantID, userID, role string) (*models.TenantMember, string, error) {
	desired, ok := access.ParseTenantRole(role)
	if !ok {
		return nil, "", ErrInvalidRole
	}
	if err := checkActor(actor); err != nil {
		return nil, "", err
	}

	var updated *models.TenantMember
	var previous string
	err := s.tenants.InMembershipTx(ctx, func(mt *repositories.MembershipTx) error {
		m, err := lockTarget(ctx, mt, actor, tenantID, userID, desired)
		if err != nil {
			return err
		}
		previous = m.Role
		if previous == string(desired) {
			updated = m
			return nil
		}
		if err := mt.UpdateRole(ctx, tenantID, userID, string(desired)); err != nil {
			return err
		}
		m.Role = string(desired)
		updated = m
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return updated, previous, nil
}

// RemoveMember deletes the membership of userID and returns the removed row
func (s *MembershipService) RemoveMember(ctx context.Context, actor access.EffectiveRole, tenantID, userID string) (*models.TenantMember, error) {
	if err := checkActor(actor); err != nil {
		return nil, err
	}

	var removed *models.TenantMember
	err := s.tenants.InMembershipTx(ctx, func(mt *repositories.MembershipTx) error {
		m, err := lockTarget(ctx, mt, actor, tenantID, userID, "")
		if err != nil {
			return err
		}
		if err := mt.Remove(ctx, tenantID, userID); err != nil {
			return err
		}
		removed = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

func checkActor(actor access.EffectiveRole) error {
	if err := access.CheckRole(actor, string(access.RoleAdmin), string(access.RoleOwner), string(access.RoleSuperadmin)); err != nil {
		if errors.Is(err, access.ErrInsufficientRole) {
			return ErrForbidden
		}
		return err
	}
	return nil
}

// lockTarget locks the privileged rows first and then the target, so that every
// membership transaction takes its locks in the same order. An empty desired
// role means removal.
func lockTarget(ctx context.Context, mt *repositories.MembershipTx, actor access.EffectiveRole, tenantID, userID string, desired access.TenantRole) (*models.TenantMember, error) {
	privileged, err := mt.LockPrivilegedMembers(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	m, err := mt.GetMember(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrMemberNotFound
	}

	current := access.TenantRole(m.Role)
	removal := desired == ""
	if removal {
		desired = current
	}

	// The last privileged member is protected whoever the actor is.
	losesPrivilege := access.IsPrivileged(current) && (removal || !access.IsPrivileged(desired))
	if losesPrivilege && isLastPrivileged(privileged, userID) {
		return nil, ErrLastPrivileged
	}
	if !access.CanManageMembership(actor, current, desired) {
		return nil, ErrForbidden
	}
	return m, nil
}

func isLastPrivileged(privileged []string, userID string) bool {
	return len(privileged) == 1 && privileged[0] == userID
}
