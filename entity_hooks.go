package criteria

import "context"

// =====================================
// Entity Hook Interfaces
// =====================================

// ValidationHook is called to check the invariants of an entity before it is saved
type ValidationHook interface {
	Validate(ctx context.Context) error
}

// AfterFindHook is called after an entity has been loaded by Get or Find
type AfterFindHook interface {
	AfterFind(ctx context.Context) error
}

// CheckInvariants runs ValidationHook on every entity that implements it and
// returns the first violation unchanged.
func CheckInvariants[T any](ctx context.Context, entities ...*T) error {
	for _, entity := range entities {
		if entity == nil {
			return NewError(ErrorTypeInvalidArgument, "nil entity")
		}
		if hook, ok := any(entity).(ValidationHook); ok {
			if err := hook.Validate(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

// AfterLoad runs AfterFindHook on every loaded entity that implements it.
func AfterLoad[T any](ctx context.Context, entities ...*T) error {
	for _, entity := range entities {
		if hook, ok := any(entity).(AfterFindHook); ok {
			if err := hook.AfterFind(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}
