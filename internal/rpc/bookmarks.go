package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// UpsertResult reports what a bookmark RPC did. Inserted is false when the
// (user_id, url) pair already existed.
type UpsertResult struct {
	BookmarkID int64
	Inserted   bool
}

// Delivery identifies the queue message an RPC consumes on success
type Delivery struct {
	Queue string
	MsgID int64
}

// InstagramBookmark holds process_instagram_bookmark parameters
type InstagramBookmark struct {
	Delivery
	URL             string
	UserID          string
	Type            string
	Title           string
	Description     string
	OgImage         string
	MetaData        map[string]any
	CollectionNames []string
	SavedAt         string
}

// TwitterBookmark holds process_twitter_bookmark parameters
type TwitterBookmark struct {
	Delivery
	URL         string
	UserID      string
	Title       string
	Description string
	OgImage     string
	MetaData    map[string]any
	SortIndex   string
	InsertedAt  string
}

// TwitterCategoryLink holds link_twitter_bookmark_category parameters
type TwitterCategoryLink struct {
	Delivery
	URL          string
	UserID       string
	CategoryName string
}

// RaindropBookmark holds process_raindrop_bookmark parameters
type RaindropBookmark struct {
	Delivery
	URL          string
	UserID       string
	Type         string
	Title        string
	Description  string
	OgImage      string
	CategoryName string
	MetaData     map[string]any
}

// Bookmarks are the transactional RPCs workers call into
type Bookmarks interface {
	ProcessInstagramBookmark(ctx context.Context, p InstagramBookmark) (UpsertResult, error)
	ProcessTwitterBookmark(ctx context.Context, p TwitterBookmark) (UpsertResult, error)
	LinkTwitterBookmarkCategory(ctx context.Context, p TwitterCategoryLink) error
	ProcessRaindropBookmark(ctx context.Context, p RaindropBookmark) (UpsertResult, error)
	UpdateQueueMessageError(ctx context.Context, queue string, msgID int64, errText string) error
}

// Postgres calls the RPCs as SQL functions over a pgx pool
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates an RPC client
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (r *Postgres) ProcessInstagramBookmark(ctx context.Context, p InstagramBookmark) (UpsertResult, error) {
	const op = "rpc.ProcessInstagramBookmark"

	meta, err := jsonArg(p.MetaData)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("%s: %w", op, err)
	}

	var res UpsertResult
	err = r.pool.QueryRow(ctx, `
		SELECT bookmark_id, inserted FROM process_instagram_bookmark(
			p_url := $1, p_user_id := $2::uuid, p_type := $3, p_title := $4,
			p_description := $5, p_og_image := $6, p_meta_data := $7::jsonb,
			p_collection_names := $8::text[], p_saved_at := NULLIF($9, '')::timestamptz,
			p_msg_id := $10::bigint, p_queue_name := $11)`,
		p.URL, p.UserID, p.Type, p.Title, p.Description, p.OgImage, meta,
		p.CollectionNames, p.SavedAt, p.MsgID, p.Queue,
	).Scan(&res.BookmarkID, &res.Inserted)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

func (r *Postgres) ProcessTwitterBookmark(ctx context.Context, p TwitterBookmark) (UpsertResult, error) {
	const op = "rpc.ProcessTwitterBookmark"

	meta, err := jsonArg(p.MetaData)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("%s: %w", op, err)
	}

	var res UpsertResult
	err = r.pool.QueryRow(ctx, `
		SELECT bookmark_id, inserted FROM process_twitter_bookmark(
			p_url := $1, p_user_id := $2::uuid, p_title := $3, p_description := $4,
			p_og_image := $5, p_meta_data := $6::jsonb, p_sort_index := $7,
			p_inserted_at := NULLIF($8, '')::timestamptz,
			p_msg_id := $9::bigint, p_queue_name := $10)`,
		p.URL, p.UserID, p.Title, p.Description, p.OgImage, meta, p.SortIndex,
		p.InsertedAt, p.MsgID, p.Queue,
	).Scan(&res.BookmarkID, &res.Inserted)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

func (r *Postgres) LinkTwitterBookmarkCategory(ctx context.Context, p TwitterCategoryLink) error {
	const op = "rpc.LinkTwitterBookmarkCategory"

	_, err := r.pool.Exec(ctx, `
		SELECT link_twitter_bookmark_category(
			p_url := $1, p_user_id := $2::uuid, p_category_name := $3,
			p_msg_id := $4::bigint, p_queue_name := $5)`,
		p.URL, p.UserID, p.CategoryName, p.MsgID, p.Queue)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (r *Postgres) ProcessRaindropBookmark(ctx context.Context, p RaindropBookmark) (UpsertResult, error) {
	const op = "rpc.ProcessRaindropBookmark"

	meta, err := jsonArg(p.MetaData)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("%s: %w", op, err)
	}

	var res UpsertResult
	err = r.pool.QueryRow(ctx, `
		SELECT bookmark_id, inserted FROM process_raindrop_bookmark(
			p_url := $1, p_user_id := $2::uuid, p_type := $3, p_title := $4,
			p_description := $5, p_og_image := $6, p_category_name := $7,
			p_meta_data := $8::jsonb, p_msg_id := $9::bigint, p_queue_name := $10)`,
		p.URL, p.UserID, p.Type, p.Title, p.Description, p.OgImage, p.CategoryName,
		meta, p.MsgID, p.Queue,
	).Scan(&res.BookmarkID, &res.Inserted)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// UpdateQueueMessageError stores errText as last_error on the message so the
// eventual archive reason can carry it.
func (r *Postgres) UpdateQueueMessageError(ctx context.Context, queue string, msgID int64, errText string) error {
	const op = "rpc.UpdateQueueMessageError"

	_, err := r.pool.Exec(ctx,
		`SELECT update_queue_message_error(p_queue_name := $1, p_msg_id := $2::bigint, p_error := $3)`,
		queue, msgID, errText)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func jsonArg(v map[string]any) (string, error) {
	if v == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal meta_data: %w", err)
	}
	return string(raw), nil
}
