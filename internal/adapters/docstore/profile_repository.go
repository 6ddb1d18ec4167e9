package docstore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/domain"
	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/ports"
)

type ProfileRepository struct {
	coll *mongo.Collection
}

var _ ports.ProfileRepository = (*ProfileRepository)(nil)

func NewProfileRepository(db *mongo.Database) *ProfileRepository {
	return &ProfileRepository{coll: db.Collection(ProfilesCollection)}
}

type profileDoc struct {
	ID           string    `bson:"_id"`
	Email        string    `bson:"email"`
	DisplayName  string    `bson:"display_name"`
	Role         string    `bson:"role"`
	AssignedArea string    `bson:"assigned_area,omitempty"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

func (d profileDoc) toDomain() domain.Profile {
	return domain.Profile{
		ID:           d.ID,
		Email:        d.Email,
		DisplayName:  d.DisplayName,
		Role:         domain.Role(d.Role),
		AssignedArea: d.AssignedArea,
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}
}

func (r *ProfileRepository) FindByID(ctx context.Context, id string) (*domain.Profile, error) {
	var doc profileDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, mapError(err)
	}
	p := doc.toDomain()
	return &p, nil
}

// CreateIfAbsent inserts p; a duplicate key means another sign-in already provisioned it.
func (r *ProfileRepository) CreateIfAbsent(ctx context.Context, p domain.Profile) (domain.Profile, bool, error) {
	_, err := r.coll.InsertOne(ctx, profileDoc{
		ID:           p.ID,
		Email:        p.Email,
		DisplayName:  p.DisplayName,
		Role:         string(p.Role),
		AssignedArea: p.AssignedArea,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	})
	if err == nil {
		return p, true, nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return domain.Profile{}, false, err
	}

	existing, err := r.FindByID(ctx, p.ID)
	if err != nil {
		return domain.Profile{}, false, err
	}
	return *existing, false, nil
}

func (r *ProfileRepository) List(ctx context.Context, role domain.Role) ([]domain.Profile, error) {
	filter := bson.M{}
	if role != "" {
		filter["role"] = string(role)
	}

	cur, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []profileDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	profiles := make([]domain.Profile, len(docs))
	for i, d := range docs {
		profiles[i] = d.toDomain()
	}
	return profiles, nil
}

func (r *ProfileRepository) Update(ctx context.Context, id string, upd domain.ProfileUpdate, now time.Time) (*domain.Profile, error) {
	set := bson.M{"updated_at": now}
	if upd.Role != nil {
		set["role"] = string(*upd.Role)
	}
	if upd.AssignedArea != nil {
		set["assigned_area"] = *upd.AssignedArea
	}

	var doc profileDoc
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if err != nil {
		return nil, mapError(err)
	}
	p := doc.toDomain()
	return &p, nil
}
