package natsconn

import (
	"errors"
	"slices"
	"time"

	"github.com/nats-io/nats.go"
)

// StreamManager is the slice of nats.JetStreamContext used by EnsureStream.
type StreamManager interface {
	StreamInfo(stream string, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	AddStream(cfg *nats.StreamConfig, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	UpdateStream(cfg *nats.StreamConfig, opts ...nats.JSOpt) (*nats.StreamInfo, error)
}

// EnsureStream creates the named file-backed stream, or widens an existing
// one so it covers subject.
func EnsureStream(js StreamManager, name, subject string, maxAge time.Duration) error {
	info, err := js.StreamInfo(name)
	if err == nil {
		if slices.Contains(info.Config.Subjects, subject) {
			return nil
		}
		cfg := info.Config
		cfg.Subjects = []string{subject}
		_, err := js.UpdateStream(&cfg)
		return err
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return err
	}
	_, err = js.AddStream(&nats.StreamConfig{
		Name:     name,
		Subjects: []string{subject},
		Storage:  nats.FileStorage,
		MaxAge:   maxAge,
	})
	return err
}
