package domain

import (
	"context"
	"net/http"
)

// ServicePort is what the transport layer needs from the controller
type ServicePort interface {
	Install(ctx context.Context) (InstallReport, error)
	Activate(ctx context.Context) error
	Message(ctx context.Context, typ string) (MessageResp, error)
	Attach() string
	Detach(ctx context.Context, id string) error
	Status(ctx context.Context) Status
	RoundTrip(req *http.Request) (*http.Response, error)
}
