package types

import "errors"

/*
Error categories. Every precondition a transaction handler checks fails with a
Condition which belongs to exactly one of these categories, so callers may
branch either on the category

	errors.Is(err, ErrPolicy)

or on the specific condition

	errors.Is(err, ErrQuotaExceeded)
*/
var (
	// caller is not a member, not the correct authority or below the required rank
	ErrUnauthorized = errors.New("unauthorized")
	// target already has a pending action, entity already resolved, double vote
	ErrStateConflict = errors.New("state conflict")
	// action attempted outside of its time window
	ErrTemporal = errors.New("temporal")
	// parameter out of bounds, quota exceeded, fund locked, target not allow-listed
	ErrPolicy = errors.New("policy")
	// referenced entity does not exist or identity already claimed
	ErrIntegrity = errors.New("integrity")
)

// Conditions shared by multiple modules.
var (
	ErrNotMember       = NewCondition(ErrUnauthorized, "caller is not a member")
	ErrMemberInactive  = NewCondition(ErrUnauthorized, "member is not active")
	ErrRankTooLow      = NewCondition(ErrUnauthorized, "rank is too low")
	ErrNotAuthority    = NewCondition(ErrUnauthorized, "caller is not the authority of the member")
	ErrPendingAction   = NewCondition(ErrStateConflict, "member already has a pending action")
	ErrTooEarly        = NewCondition(ErrTemporal, "too early")
	ErrTooLate         = NewCondition(ErrTemporal, "too late")
	ErrOutOfBounds     = NewCondition(ErrPolicy, "value out of bounds")
	ErrQuotaExceeded   = NewCondition(ErrPolicy, "quota exceeded")
	ErrMemberNotFound  = NewCondition(ErrIntegrity, "member does not exist")
	ErrIdentityClaimed = NewCondition(ErrIntegrity, "identity is already claimed")
	ErrInvalidArgument = NewCondition(ErrIntegrity, "invalid argument")
)

/*
Condition is a named reason for rejecting a transaction.

Conditions are compared by identity so they must be created once, as package
level variables. Use fmt.Errorf with %w verb to add details:

	fmt.Errorf("%w: order %d", ErrOrderNotPending, id)
*/
type Condition struct {
	category error
	msg      string
}

func NewCondition(category error, msg string) *Condition {
	return &Condition{category: category, msg: msg}
}

func (c *Condition) Error() string { return c.msg }

func (c *Condition) Is(target error) bool { return target == c.category }

func (c *Condition) Category() error { return c.category }

/*
Category returns the category of the first Condition in the error chain of
"err", nil when there is none.
*/
func Category(err error) error {
	var c *Condition
	if errors.As(err, &c) {
		return c.category
	}
	return nil
}
