package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoConfig はMongoDBへの接続設定。
type MongoConfig struct {
	// URI が設定されている場合はUser/Password/Clusterより優先する。
	URI      string
	User     string
	Password string
	// Cluster はAtlasクラスタのホスト名（例: cluster0.xxxx.mongodb.net）。
	Cluster string
	AppName string

	AssignmentDB         string
	AssignmentCollection string
	BidDB                string
	BidCollection        string

	// ConnectTimeout は接続とPingに使う時間の上限。
	ConnectTimeout time.Duration
}

// connectionURI は接続文字列を組み立てる。
func (c MongoConfig) connectionURI() string {
	if c.URI != "" {
		return c.URI
	}
	return fmt.Sprintf("mongodb+srv://%s:%s@%s/?retryWrites=true&w=majority&appName=%s",
		url.QueryEscape(c.User), url.QueryEscape(c.Password), c.Cluster, url.QueryEscape(c.AppName))
}

// Mongo はMongoDBをバックエンドとするドキュメントストア。
// プロセスの生存期間中、1つのクライアントと2つのコレクションハンドルを保持する。
type Mongo struct {
	client      *mongo.Client
	assignments *mongo.Collection
	bids        *mongo.Collection
}

// NewMongo はMongoDBに接続し、プライマリへのPingで疎通を確認する。
func NewMongo(ctx context.Context, cfg MongoConfig) (*Mongo, error) {
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	serverAPI := options.ServerAPI(options.ServerAPIVersion1).
		SetStrict(true).
		SetDeprecationErrors(true)
	clientOptions := options.Client().
		ApplyURI(cfg.connectionURI()).
		SetServerAPIOptions(serverAPI).
		// 入れ子のドキュメントをJSONオブジェクトとして返すためmapでデコードする
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true}).
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(timeout)

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("MongoDBクライアントの生成に失敗: %w", err)
	}

	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("MongoDBへのPingに失敗: %w", err)
	}
	log.Printf("MongoDBに接続しました")

	return newMongo(
		client,
		client.Database(cfg.AssignmentDB).Collection(cfg.AssignmentCollection),
		client.Database(cfg.BidDB).Collection(cfg.BidCollection),
	), nil
}

// newMongo は既存のクライアントとコレクションからストアを組み立てる。
func newMongo(client *mongo.Client, assignments, bids *mongo.Collection) *Mongo {
	return &Mongo{
		client:      client,
		assignments: assignments,
		bids:        bids,
	}
}

// Ping はプライマリへの疎通を確認する。
func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

// Close はMongoDBとの接続を切断する。
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// InsertAssignment は課題ドキュメントをそのまま1件挿入する。
func (m *Mongo) InsertAssignment(ctx context.Context, raw json.RawMessage) (*InsertResult, error) {
	return insertRaw(ctx, m.assignments, raw)
}

// ListAssignments は課題一覧を返す。levelが空でなければ完全一致で絞り込む。
func (m *Mongo) ListAssignments(ctx context.Context, level string) ([]Document, error) {
	filter := bson.D{}
	if level != "" {
		filter = bson.D{{Key: "level", Value: level}}
	}
	return findAll(ctx, m.assignments, filter)
}

// UpsertAssignment は課題の6フィールドを上書きする。存在しなければ作成する。
func (m *Mongo) UpsertAssignment(ctx context.Context, id string, u AssignmentUpdate) (*UpdateResult, error) {
	set, err := u.setJSON()
	if err != nil {
		return nil, err
	}
	return upsertByID(ctx, m.assignments, id, set)
}

// DeleteAssignment はIDで課題を1件削除する。
func (m *Mongo) DeleteAssignment(ctx context.Context, id string) (*DeleteResult, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	res, err := m.assignments.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return nil, fmt.Errorf("課題の削除に失敗: %w", err)
	}
	return &DeleteResult{Acknowledged: true, DeletedCount: res.DeletedCount}, nil
}

// CountAssignments はコレクションのメタデータから課題の推定件数を返す。
func (m *Mongo) CountAssignments(ctx context.Context) (int64, error) {
	n, err := m.assignments.EstimatedDocumentCount(ctx)
	if err != nil {
		return 0, fmt.Errorf("課題件数の取得に失敗: %w", err)
	}
	return n, nil
}

// InsertBid は提出物ドキュメントをそのまま1件挿入する。
func (m *Mongo) InsertBid(ctx context.Context, raw json.RawMessage) (*InsertResult, error) {
	return insertRaw(ctx, m.bids, raw)
}

// ListPendingBids はstatusがpendingの提出物を返す。
func (m *Mongo) ListPendingBids(ctx context.Context) ([]Document, error) {
	return findAll(ctx, m.bids, bson.D{{Key: "status", Value: PendingStatus}})
}

// FindBid はIDで提出物を1件取得する。存在しない場合はnilを返す。
func (m *Mongo) FindBid(ctx context.Context, id string) (Document, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	var doc Document
	err = m.bids.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("提出物の取得に失敗: %w", err)
	}
	return doc, nil
}

// UpsertBidReview は提出物の採点フィールドを上書きする。存在しなければ作成する。
func (m *Mongo) UpsertBidReview(ctx context.Context, id string, r BidReview) (*UpdateResult, error) {
	set, err := r.setJSON()
	if err != nil {
		return nil, err
	}
	return upsertByID(ctx, m.bids, id, set)
}

// ListBidsByEmail は受験者のメールアドレスに完全一致する提出物を返す。
func (m *Mongo) ListBidsByEmail(ctx context.Context, email string) ([]Document, error) {
	return findAll(ctx, m.bids, bson.D{{Key: "examineeEmail", Value: email}})
}

// objectID は文字列をObjectIDに変換する。
func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return oid, nil
}

// insertRaw はJSONボディを拡張JSON（relaxed）として解釈し、そのまま挿入する。
func insertRaw(ctx context.Context, coll *mongo.Collection, raw json.RawMessage) (*InsertResult, error) {
	doc, err := extJSONDocument(raw)
	if err != nil {
		return nil, err
	}

	res, err := coll.InsertOne(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("%sへの挿入に失敗: %w", coll.Name(), err)
	}
	return &InsertResult{Acknowledged: true, InsertedID: res.InsertedID}, nil
}

// findAll はフィルタに一致するドキュメントをすべて返す。0件の場合は空スライスを返す。
func findAll(ctx context.Context, coll *mongo.Collection, filter bson.D) ([]Document, error) {
	cursor, err := coll.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%sの検索に失敗: %w", coll.Name(), err)
	}

	docs := []Document{}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%sのカーソル読み取りに失敗: %w", coll.Name(), err)
	}
	if docs == nil {
		docs = []Document{}
	}
	return docs, nil
}

// upsertByID はsetRawの各キーを$setで上書きし、対象が無ければ作成する。
func upsertByID(ctx context.Context, coll *mongo.Collection, id string, setRaw json.RawMessage) (*UpdateResult, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	set, err := extJSONDocument(setRaw)
	if err != nil {
		return nil, err
	}

	res, err := coll.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: oid}},
		bson.D{{Key: "$set", Value: set}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return nil, fmt.Errorf("%sの更新に失敗: %w", coll.Name(), err)
	}
	return &UpdateResult{
		Acknowledged:  true,
		MatchedCount:  res.MatchedCount,
		ModifiedCount: res.ModifiedCount,
		UpsertedCount: res.UpsertedCount,
		UpsertedID:    res.UpsertedID,
	}, nil
}

// extJSONDocument はJSONオブジェクトを拡張JSON（relaxed）としてBSONドキュメントに変換する。
// 1つのJSON値だけで構成されていない場合はErrInvalidDocumentを返す。
func extJSONDocument(raw json.RawMessage) (bson.D, error) {
	if !json.Valid(raw) {
		return nil, fmt.Errorf("%w: 1つのJSON値ではありません", ErrInvalidDocument)
	}
	var doc bson.D
	if err := bson.UnmarshalExtJSON(raw, false, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return doc, nil
}
