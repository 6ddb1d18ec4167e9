package docstore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/domain"
	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/ports"
)

type ReportRepository struct {
	coll *mongo.Collection
}

var _ ports.ReportRepository = (*ReportRepository)(nil)

func NewReportRepository(db *mongo.Database) *ReportRepository {
	return &ReportRepository{coll: db.Collection(ReportsCollection)}
}

type reportDoc struct {
	ID          string          `bson:"_id"`
	Title       string          `bson:"title"`
	Description string          `bson:"description"`
	Category    string          `bson:"category"`
	Priority    string          `bson:"priority"`
	Status      string          `bson:"status"`
	Location    domain.Location `bson:"location"`
	Images      []string        `bson:"images"`
	ReportedBy  string          `bson:"reported_by"`
	AssignedTo  string          `bson:"assigned_to,omitempty"`
	ReportedAt  time.Time       `bson:"reported_at"`
	UpdatedAt   time.Time       `bson:"updated_at"`
}

func toReportDoc(r domain.Report) reportDoc {
	return reportDoc{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Category:    string(r.Category),
		Priority:    string(r.Priority),
		Status:      string(r.Status),
		Location:    r.Location,
		Images:      r.Images,
		ReportedBy:  r.ReportedBy,
		AssignedTo:  r.AssignedTo,
		ReportedAt:  r.ReportedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func (d reportDoc) toDomain() domain.Report {
	images := d.Images
	if images == nil {
		images = []string{}
	}
	return domain.Report{
		ID:          d.ID,
		Title:       d.Title,
		Description: d.Description,
		Category:    domain.WasteCategory(d.Category),
		Priority:    domain.Priority(d.Priority),
		Status:      domain.ReportStatus(d.Status),
		Location:    d.Location,
		Images:      images,
		ReportedBy:  d.ReportedBy,
		AssignedTo:  d.AssignedTo,
		ReportedAt:  d.ReportedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
}

func (r *ReportRepository) Create(ctx context.Context, report domain.Report) (domain.Report, error) {
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	if _, err := r.coll.InsertOne(ctx, toReportDoc(report)); err != nil {
		return domain.Report{}, mapError(err)
	}
	return report, nil
}

func (r *ReportRepository) FindByID(ctx context.Context, id string) (*domain.Report, error) {
	var doc reportDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, mapError(err)
	}
	report := doc.toDomain()
	return &report, nil
}

func (r *ReportRepository) List(ctx context.Context, filter domain.ReportFilter) ([]domain.Report, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "reported_at", Value: -1}}).
		SetLimit(int64(filter.EffectiveLimit()))

	cur, err := r.coll.Find(ctx, buildFilter(filter), opts)
	if err != nil {
		return nil, mapError(err)
	}
	defer cur.Close(ctx)

	reports := make([]domain.Report, 0, filter.EffectiveLimit())
	for cur.Next(ctx) {
		var doc reportDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		reports = append(reports, doc.toDomain())
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return reports, nil
}

type statsGroup struct {
	Key struct {
		Status   string `bson:"status"`
		Category string `bson:"category"`
		Priority string `bson:"priority"`
	} `bson:"_id"`
	N int `bson:"n"`
}

// Stats groups matching documents server-side by status, category and priority.
func (r *ReportRepository) Stats(ctx context.Context, filter domain.ReportFilter) (domain.ReportStats, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: buildFilter(filter)}},
		{{Key: "$group", Value: bson.M{
			"_id": bson.M{"status": "$status", "category": "$category", "priority": "$priority"},
			"n":   bson.M{"$sum": 1},
		}}},
	}

	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return domain.ReportStats{}, mapError(err)
	}
	defer cur.Close(ctx)

	st := domain.NewReportStats()
	for cur.Next(ctx) {
		var g statsGroup
		if err := cur.Decode(&g); err != nil {
			return domain.ReportStats{}, err
		}
		st.Add(domain.ReportStatus(g.Key.Status), domain.WasteCategory(g.Key.Category), domain.Priority(g.Key.Priority), g.N)
	}
	if err := cur.Err(); err != nil {
		return domain.ReportStats{}, err
	}
	return st, nil
}

// buildFilter is the document equivalent of ReportFilter.Matches.
func buildFilter(f domain.ReportFilter) bson.M {
	filter := bson.M{}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		filter["status"] = bson.M{"$in": statuses}
	}
	if f.Category != "" {
		filter["category"] = string(f.Category)
	}
	if f.Priority != "" {
		filter["priority"] = string(f.Priority)
	}
	if f.ReportedBy != "" {
		filter["reported_by"] = f.ReportedBy
	}
	if f.AssignedTo != "" {
		filter["assigned_to"] = f.AssignedTo
	}
	return filter
}

// UpdateStatus writes only status, assignee and updatedAt.
func (r *ReportRepository) UpdateStatus(ctx context.Context, id string, change domain.StatusChange) (*domain.Report, error) {
	update := bson.M{
		"$set": bson.M{
			"status":     string(change.Status),
			"updated_at": change.UpdatedAt,
		},
	}
	if change.AssignedTo != "" {
		update["$set"].(bson.M)["assigned_to"] = change.AssignedTo
	} else {
		update["$unset"] = bson.M{"assigned_to": ""}
	}

	var doc reportDoc
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if err != nil {
		return nil, mapError(err)
	}
	report := doc.toDomain()
	return &report, nil
}

func (r *ReportRepository) Delete(ctx context.Context, id string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return mapError(err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}
