package store

import (
	"bytes"
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/nao1215/assignment-api/pkg/migration"
	"go.mongodb.org/mongo-driver/bson/primitive"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// テーブル名。
const (
	tableAssignments = "assignments"
	tableBids        = "bids"
)

// SQLite はSQLiteのJSONドキュメントでMongoと同じ操作を提供するストア。
// IDはObjectIDと同じ24桁16進数の文字列で採番する。
type SQLite struct {
	db *sql.DB
}

// NewSQLite はSQLiteデータベースを開き、スキーマを適用する。
// pathに ":memory:" を渡すとインメモリデータベースになる。
func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	// インメモリDBは接続ごとに別のDBになるため、接続を1本に固定する
	db.SetMaxOpenConns(1)

	applied, err := migration.Run(ctx, db, migrationsFS, "migrations")
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}
	if len(applied) > 0 {
		log.Printf("SQLiteスキーマを適用しました: path=%s versions=%v", path, applied)
	}
	return &SQLite{db: db}, nil
}

// Ping はデータベースへの疎通を確認する。
func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close はデータベースを閉じる。
func (s *SQLite) Close(_ context.Context) error {
	return s.db.Close()
}

// InsertAssignment は課題ドキュメントをそのまま1件挿入する。
func (s *SQLite) InsertAssignment(ctx context.Context, raw json.RawMessage) (*InsertResult, error) {
	return s.insert(ctx, tableAssignments, raw)
}

// ListAssignments は課題一覧を返す。levelが空でなければ完全一致で絞り込む。
func (s *SQLite) ListAssignments(ctx context.Context, level string) ([]Document, error) {
	if level == "" {
		return s.find(ctx, tableAssignments, "", nil)
	}
	return s.find(ctx, tableAssignments, "level", level)
}

// UpsertAssignment は課題の6フィールドを上書きする。存在しなければ作成する。
func (s *SQLite) UpsertAssignment(ctx context.Context, id string, u AssignmentUpdate) (*UpdateResult, error) {
	set, err := u.setJSON()
	if err != nil {
		return nil, err
	}
	return s.upsert(ctx, tableAssignments, id, set)
}

// DeleteAssignment はIDで課題を1件削除する。
func (s *SQLite) DeleteAssignment(ctx context.Context, id string) (*DeleteResult, error) {
	if _, err := objectID(id); err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx, "DELETE FROM "+tableAssignments+" WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("課題の削除に失敗: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("削除件数の取得に失敗: %w", err)
	}
	return &DeleteResult{Acknowledged: true, DeletedCount: n}, nil
}

// CountAssignments は課題の件数を返す。SQLiteでは正確な件数になる。
func (s *SQLite) CountAssignments(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+tableAssignments).Scan(&n); err != nil {
		return 0, fmt.Errorf("課題件数の取得に失敗: %w", err)
	}
	return n, nil
}

// InsertBid は提出物ドキュメントをそのまま1件挿入する。
func (s *SQLite) InsertBid(ctx context.Context, raw json.RawMessage) (*InsertResult, error) {
	return s.insert(ctx, tableBids, raw)
}

// ListPendingBids はstatusがpendingの提出物を返す。
func (s *SQLite) ListPendingBids(ctx context.Context) ([]Document, error) {
	return s.find(ctx, tableBids, "status", PendingStatus)
}

// FindBid はIDで提出物を1件取得する。存在しない場合はnilを返す。
func (s *SQLite) FindBid(ctx context.Context, id string) (Document, error) {
	if _, err := objectID(id); err != nil {
		return nil, err
	}

	var raw string
	err := s.db.QueryRowContext(ctx, "SELECT doc FROM "+tableBids+" WHERE id = ?", id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("提出物の取得に失敗: %w", err)
	}
	return decodeDocument([]byte(raw))
}

// UpsertBidReview は提出物の採点フィールドを上書きする。存在しなければ作成する。
func (s *SQLite) UpsertBidReview(ctx context.Context, id string, r BidReview) (*UpdateResult, error) {
	set, err := r.setJSON()
	if err != nil {
		return nil, err
	}
	return s.upsert(ctx, tableBids, id, set)
}

// ListBidsByEmail は受験者のメールアドレスに完全一致する提出物を返す。
func (s *SQLite) ListBidsByEmail(ctx context.Context, email string) ([]Document, error) {
	return s.find(ctx, tableBids, "examineeEmail", email)
}

// insert はJSONオブジェクトを検証し、"_id" を採番して保存する。
// ボディに文字列の "_id" があればそれを使う。
func (s *SQLite) insert(ctx context.Context, table string, raw json.RawMessage) (*InsertResult, error) {
	doc, err := decodeDocument(raw)
	if err != nil || doc == nil {
		return nil, fmt.Errorf("%w: JSONオブジェクトではありません", ErrInvalidDocument)
	}

	id, ok := doc["_id"].(string)
	if !ok || id == "" {
		id = primitive.NewObjectID().Hex()
		doc["_id"] = id
	}

	encoded, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("ドキュメントのシリアライズに失敗: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "INSERT INTO "+table+" (id, doc) VALUES (?, ?)", id, string(encoded)); err != nil {
		return nil, fmt.Errorf("%sへの挿入に失敗: %w", table, err)
	}
	return &InsertResult{Acknowledged: true, InsertedID: id}, nil
}

// find はfieldの値がvalueに一致するドキュメントを挿入順に返す。
// fieldが空の場合は全件を返す。
func (s *SQLite) find(ctx context.Context, table, field string, value any) ([]Document, error) {
	query := "SELECT doc FROM " + table
	var args []any
	if field != "" {
		query += " WHERE json_extract(doc, ?) = ?"
		args = append(args, "$."+field, value)
	}
	query += " ORDER BY rowid"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%sの検索に失敗: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	docs := []Document{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("%sの読み取りに失敗: %w", table, err)
		}
		doc, err := decodeDocument([]byte(raw))
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%sの読み取りに失敗: %w", table, err)
	}
	return docs, nil
}

// upsert はsetRawの各キーで既存ドキュメントを上書きする。
// 対象が存在しない場合はsetRawのキーと "_id" だけを持つドキュメントを作成する。
func (s *SQLite) upsert(ctx context.Context, table, id string, setRaw json.RawMessage) (*UpdateResult, error) {
	if _, err := objectID(id); err != nil {
		return nil, err
	}

	set, err := decodeDocument(setRaw)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var raw string
	err = tx.QueryRowContext(ctx, "SELECT doc FROM "+table+" WHERE id = ?", id).Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		set["_id"] = id
		encoded, err := json.Marshal(set)
		if err != nil {
			return nil, fmt.Errorf("ドキュメントのシリアライズに失敗: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO "+table+" (id, doc) VALUES (?, ?)", id, string(encoded)); err != nil {
			return nil, fmt.Errorf("%sへの挿入に失敗: %w", table, err)
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("コミットに失敗: %w", err)
		}
		return &UpdateResult{Acknowledged: true, UpsertedCount: 1, UpsertedID: id}, nil
	case err != nil:
		return nil, fmt.Errorf("%sの取得に失敗: %w", table, err)
	}

	doc, err := decodeDocument([]byte(raw))
	if err != nil {
		return nil, err
	}

	modified := false
	for k, v := range set {
		if old, ok := doc[k]; !ok || !sameJSON(old, v) {
			modified = true
		}
		doc[k] = v
	}

	result := &UpdateResult{Acknowledged: true, MatchedCount: 1}
	if !modified {
		return result, nil
	}

	encoded, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("ドキュメントのシリアライズに失敗: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "UPDATE "+table+" SET doc = ? WHERE id = ?", string(encoded), id); err != nil {
		return nil, fmt.Errorf("%sの更新に失敗: %w", table, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("コミットに失敗: %w", err)
	}
	result.ModifiedCount = 1
	return result, nil
}

// decodeDocument はJSONをDocumentに変換する。数値はjson.Numberのまま保持する。
// 最初のJSON値の後ろに続きがある場合はErrInvalidDocumentを返す。
func decodeDocument(raw []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: JSON値の後ろに余分なデータがあります", ErrInvalidDocument)
	}
	return doc, nil
}

// sameJSON は2つの値のJSON表現が一致するかを返す。
func sameJSON(a, b any) bool {
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	return errA == nil && errB == nil && bytes.Equal(ja, jb)
}
