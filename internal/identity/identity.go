// Package identity resolves who is acting when a tool runs: the live
// session actor, or the actor bound to the active conversation when no
// session exists.
package identity

import "context"

// Actor is a resolved caller identity.
type Actor struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Resolver resolves actor identities. Implementations return (nil, nil)
// when no actor is known; absence is an expected state, not an error.
type Resolver interface {
	// CurrentActor returns the live session actor, if any.
	CurrentActor(ctx context.Context) (*Actor, error)
	// LookupByID returns the actor with the given id from the identity
	// store, if known.
	LookupByID(ctx context.Context, id string) (*Actor, error)
	// ActorForConversation returns the id of the authenticated actor bound
	// to a conversation, or "" if none.
	ActorForConversation(ctx context.Context, conversationID string) (string, error)
}

// Static is a resolver with a fixed current actor and no directory. Used by
// CLI runs where the operator identity comes from configuration.
type Static struct {
	Actor *Actor
}

func (s Static) CurrentActor(ctx context.Context) (*Actor, error) { return s.Actor, nil }

func (s Static) LookupByID(ctx context.Context, id string) (*Actor, error) {
	if s.Actor != nil && s.Actor.ID == id {
		return s.Actor, nil
	}
	return nil, nil
}

func (s Static) ActorForConversation(ctx context.Context, conversationID string) (string, error) {
	return "", nil
}

// Chain tries each resolver in order for CurrentActor and directory lookups.
type Chain []Resolver

func (c Chain) CurrentActor(ctx context.Context) (*Actor, error) {
	for _, r := range c {
		actor, err := r.CurrentActor(ctx)
		if err != nil {
			return nil, err
		}
		if actor != nil {
			return actor, nil
		}
	}
	return nil, nil
}

func (c Chain) LookupByID(ctx context.Context, id string) (*Actor, error) {
	for _, r := range c {
		actor, err := r.LookupByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if actor != nil {
			return actor, nil
		}
	}
	return nil, nil
}

func (c Chain) ActorForConversation(ctx context.Context, conversationID string) (string, error) {
	for _, r := range c {
		id, err := r.ActorForConversation(ctx, conversationID)
		if err != nil {
			return "", err
		}
		if id != "" {
			return id, nil
		}
	}
	return "", nil
}
