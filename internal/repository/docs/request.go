package docs

import (
	"context"
	"time"

	"mibarrio-backend/internal/docstore"
	"mibarrio-backend/internal/domain"
	"mibarrio-backend/internal/repository"
)

type requestRepository struct {
	ds docstore.Store
}

func NewRequestRepository(ds docstore.Store) repository.RequestRepository {
	return &requestRepository{ds: ds}
}

func (r *requestRepository) Create(ctx context.Context, req *domain.Request) error {
	id, err := r.ds.Add(ctx, requestsCollection, req)
	if err != nil {
		return err
	}
	req.ID = id
	return nil
}

func (r *requestRepository) GetByID(ctx context.Context, id string) (*domain.Request, error) {
	req := &domain.Request{}
	if err := r.ds.Get(ctx, requestsCollection, id, req); err != nil {
		return nil, mapErr(err)
	}
	req.ID = id
	return req, nil
}

func (r *requestRepository) List(ctx context.Context, status domain.RequestStatus, kind domain.RequestKind) ([]domain.Request, error) {
	q := docstore.Query{}
	if status != "" {
		q = q.Where("estado", docstore.OpEqual, status)
	}
	if kind != "" {
		q = q.Where("tipo", docstore.OpEqual, kind)
	}
	q = q.OrderBy("fechaSolicitud", docstore.Desc)

	snaps, err := r.ds.Query(ctx, requestsCollection, q)
	if err != nil {
		return nil, err
	}
	return decodeAll(snaps, func(req *domain.Request, id string) { req.ID = id })
}

func (r *requestRepository) UpdatePayload(ctx context.Context, id string, payload domain.RequestPayload) error {
	return mapErr(r.ds.Update(ctx, requestsCollection, id, docstore.Field{Path: "datos", Value: payload}))
}

func (r *requestRepository) SaveProgress(ctx context.Context, id string, payload domain.RequestPayload, progress *domain.ApprovalProgress) error {
	return mapErr(r.ds.Update(ctx, requestsCollection, id,
		docstore.Field{Path: "datos", Value: payload},
		docstore.Field{Path: "progreso", Value: progress},
	))
}

func reviewFields(review repository.Review) []docstore.Field {
	reviewedAt := review.ReviewedAt
	if reviewedAt.IsZero() {
		reviewedAt = time.Now()
	}
	return []docstore.Field{
		{Path: "estado", Value: review.Status},
		{Path: "revisadoPor", Value: review.ReviewedBy},
		{Path: "fechaRevision", Value: reviewedAt},
	}
}

func (r *requestRepository) MarkReviewed(ctx context.Context, review repository.Review) error {
	return mapErr(r.ds.Update(ctx, requestsCollection, review.RequestID, reviewFields(review)...))
}

func (r *requestRepository) MarkReviewedIfPending(ctx context.Context, review repository.Review) error {
	return mapErr(r.ds.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		return markInTx(tx, review)
	}))
}

// markInTx is the compare-and-set on the request status
func markInTx(tx docstore.Tx, review repository.Review) error {
	var req domain.Request
	if err := tx.Get(requestsCollection, review.RequestID, &req); err != nil {
		return err
	}
	if !req.IsPending() {
		return repository.ErrNotPending
	}
	return tx.Update(requestsCollection, review.RequestID, reviewFields(review)...)
}
