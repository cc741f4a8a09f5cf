package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrInvalidID はIDがストアの識別子（24桁16進数のObjectID）として解釈できないことを表す。
	ErrInvalidID = errors.New("invalid document id")
	// ErrInvalidDocument はリクエストボディがJSONオブジェクトではないことを表す。
	ErrInvalidDocument = errors.New("invalid document")
)

// PendingStatus は未採点の提出物を表すstatusの値。
const PendingStatus = "pending"

// Document はスキーマを持たないドキュメント。
// ストアが割り当てたIDは "_id" キーに格納される。
type Document map[string]any

// AssignmentUpdate は課題の上書き対象のフィールド。
// キーだけを固定し、値は送られたJSONをそのまま保存する。
// 未指定のフィールドはnullで上書きされる。
type AssignmentUpdate struct {
	TitleName      json.RawMessage `json:"titleName"`
	Description    json.RawMessage `json:"description"`
	ProcessingTime json.RawMessage `json:"processingTime"`
	Mark           json.RawMessage `json:"mark"`
	Photo          json.RawMessage `json:"photo"`
	Level          json.RawMessage `json:"level"`
}

// setJSON は$setに渡すJSONオブジェクトを組み立てる。
func (u AssignmentUpdate) setJSON() (json.RawMessage, error) {
	return fieldsJSON([]field{
		{"titleName", u.TitleName},
		{"description", u.Description},
		{"processingTime", u.ProcessingTime},
		{"mark", u.Mark},
		{"photo", u.Photo},
		{"level", u.Level},
	})
}

// BidReview は提出物の採点で上書きされるフィールド。値の扱いはAssignmentUpdateと同じ。
type BidReview struct {
	GivenMark json.RawMessage `json:"givenMark"`
	FeedBack  json.RawMessage `json:"feedBack"`
	Status    json.RawMessage `json:"status"`
}

// setJSON は$setに渡すJSONオブジェクトを組み立てる。
func (r BidReview) setJSON() (json.RawMessage, error) {
	return fieldsJSON([]field{
		{"givenMark", r.GivenMark},
		{"feedBack", r.FeedBack},
		{"status", r.Status},
	})
}

type field struct {
	key   string
	value json.RawMessage
}

// fieldsJSON はフィールドを順番どおりに並べたJSONオブジェクトを返す。
// 値が空のフィールドはnullになる。
func fieldsJSON(fields []field) (json.RawMessage, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		value := bytes.TrimSpace(f.value)
		switch {
		case len(value) == 0:
			buf.WriteString("null")
		case !json.Valid(value):
			return nil, fmt.Errorf("%w: %sの値がJSONではありません", ErrInvalidDocument, f.key)
		default:
			buf.Write(value)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// InsertResult は1件挿入の結果。
type InsertResult struct {
	Acknowledged bool `json:"acknowledged"`
	InsertedID   any  `json:"insertedId"`
}

// UpdateResult は1件更新（upsert）の結果。
type UpdateResult struct {
	Acknowledged  bool  `json:"acknowledged"`
	MatchedCount  int64 `json:"matchedCount"`
	ModifiedCount int64 `json:"modifiedCount"`
	UpsertedCount int64 `json:"upsertedCount"`
	// UpsertedID は新規作成された場合のみ設定される。
	UpsertedID any `json:"upsertedId"`
}

// DeleteResult は1件削除の結果。
type DeleteResult struct {
	Acknowledged bool  `json:"acknowledged"`
	DeletedCount int64 `json:"deletedCount"`
}
