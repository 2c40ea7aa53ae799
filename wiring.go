package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"rently/internal/blob"
	"rently/internal/config"
	"rently/internal/docstore"
	"rently/internal/identity"
	"rently/internal/session"
)

func openStore(ctx context.Context, c config.Store, log *zap.Logger) (docstore.Store, error) {
	switch c.Driver {
	case "memory":
		return docstore.NewMemory(), nil
	case "gorm":
		return docstore.OpenGORM(docstore.GORMOptions{
			Driver:       c.DBDriver,
			DSN:          c.DSN,
			LogLevel:     c.LogLevel,
			PollInterval: c.PollInterval,
		}, log)
	case "firestore":
		return docstore.NewFirestore(ctx, c.ProjectID, log)
	}
	return nil, fmt.Errorf("unknown store driver %q", c.Driver)
}

func openIdentity(c config.Identity, logLevel string, log *zap.Logger) (*identity.Local, error) {
	db, err := docstore.OpenDialector(c.DBDriver, c.DSN, logLevel)
	if err != nil {
		return nil, err
	}
	return identity.NewLocal(db, log)
}

func openBlob(ctx context.Context, c config.Blob) (blob.Store, error) {
	switch c.Driver {
	case "memory":
		return blob.NewMemory(), nil
	case "s3":
		return blob.NewS3(ctx, blob.S3Options{
			Bucket:        c.Bucket,
			Region:        c.Region,
			Endpoint:      c.Endpoint,
			AccessKey:     c.AccessKey,
			SecretKey:     c.SecretKey,
			PublicBaseURL: c.PublicBaseURL,
			URLExpiry:     c.URLExpiry,
		})
	}
	return nil, fmt.Errorf("unknown blob driver %q", c.Driver)
}

// openSessions returns the session store and a func that releases it.
func openSessions(ctx context.Context, c config.Session) (session.Store, func(), error) {
	switch c.Driver {
	case "memory":
		return session.NewMemory(), func() {}, nil
	case "redis":
		r := session.NewRedis(c.RedisAddr, c.RedisPassword, c.RedisDB)
		if err := r.Ping(ctx); err != nil {
			r.Close()
			return nil, nil, fmt.Errorf("redis unreachable: %w", err)
		}
		return r, func() { r.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown session driver %q", c.Driver)
}
