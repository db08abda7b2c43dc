package ports

import "context"

// EventPublisher publishes auth events so other services can react to them
type EventPublisher interface {
	PublishLogin(ctx context.Context, address string, chainID int) error
	PublishLogout(ctx context.Context, address string) error
}
