package jobs

import (
	"context"

	"github.com/anjiri1684/tutor_gateway/services"
	"github.com/sirupsen/logrus"
)

// SessionSweeper purges expired session rows and their in-memory replicas.
type SessionSweeper struct {
	sessions *services.SessionService
	log      *logrus.Logger
}

func NewSessionSweeper(sessions *services.SessionService, log *logrus.Logger) *SessionSweeper {
	return &SessionSweeper{sessions: sessions, log: log}
}

func (j *SessionSweeper) Run() {
	purged, err := j.sessions.PurgeExpired(context.Background())
	if err != nil {
		j.log.WithError(err).Error("session sweep failed")
		return
	}
	if purged > 0 {
		j.log.WithField("purged", purged).Info("expired sessions removed")
	}
}
