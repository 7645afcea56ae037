package repository

import (
	"context"
	"time"
)

// RegistryDocument is the stored form of one session's cart registry.
// Payload holds the encoded registry exactly as the codec produced it.
type RegistryDocument struct {
	SessionID string    `bson:"session_id" json:"sessionId"`
	Version   int       `bson:"version" json:"version"`
	Payload   string    `bson:"payload" json:"payload"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

// RegistryRepository defines the durable storage for cart registries.
// One document per session; every save replaces the whole document.
type RegistryRepository interface {
	GetRegistry(ctx context.Context, sessionID string) (*RegistryDocument, error)
	SaveRegistry(ctx context.Context, doc *RegistryDocument) error
	DeleteRegistry(ctx context.Context, sessionID string) error
}
