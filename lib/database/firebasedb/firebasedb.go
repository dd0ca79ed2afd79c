package firebasedb

import (
	"context"
	"fmt"
	"time"

	firebase "firebase.google.com/go/v4"
	"github.com/ValentinKolb/nora/lib/realtime"
	"google.golang.org/api/option"
)

// Config describes how to reach a Firebase Realtime Database.
type Config struct {
	DatabaseURL   string                // e.g. https://<project>.firebaseio.com
	Timeout       time.Duration         // per request, DefaultTimeout if not positive
	PollInterval  time.Duration         // of listeners, DefaultPollInterval if not positive
	ClientOptions []option.ClientOption // credentials, endpoints, ...
}

// New connects to the database described by config and returns it as a
// database.Backend. Options are passed on to realtime.New.
func New(ctx context.Context, config Config, opts ...realtime.Option) (*realtime.Database, error) {
	if config.DatabaseURL == "" {
		return nil, fmt.Errorf("firebase database url is required")
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{DatabaseURL: config.DatabaseURL}, config.ClientOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create firebase app: %w", err)
	}
	client, err := app.Database(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", config.DatabaseURL, err)
	}

	return realtime.New(NewStore(client, config.Timeout, config.PollInterval), opts...), nil
}
