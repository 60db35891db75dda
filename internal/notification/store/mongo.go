package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nao1215/taskmantra/pkg/logger"
)

// collectionName は通知を保存するコレクション名。
const collectionName = "notifications"

// operationTimeout はMongoDBへの接続確認とインデックス作成のタイムアウト。
const operationTimeout = 10 * time.Second

// Mongo はMongoDBを使用するStore実装。
type Mongo struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// OpenMongo はMongoDBに接続し、通知コレクションのインデックスを作成する。
func OpenMongo(ctx context.Context, uri, database string, log *logger.Logger) (*Mongo, error) {
	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(uri).
		SetAppName("taskmantra-notification").
		SetMaxConnIdleTime(5 * time.Minute)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("MongoDBへの接続に失敗: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("MongoDBの疎通確認に失敗: %w", err)
	}

	collection := client.Database(database).Collection(collectionName)
	if _, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "read", Value: 1}, {Key: "createdAt", Value: -1}},
	}); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("インデックスの作成に失敗: %w", err)
	}

	if log != nil {
		log.Info("MongoDBに接続しました", "database", database, "collection", collectionName)
	}
	return &Mongo{client: client, collection: collection}, nil
}

// Create は通知を保存する。
func (m *Mongo) Create(ctx context.Context, n Notification) error {
	n.CreatedAt = n.CreatedAt.UTC()
	if _, err := m.collection.InsertOne(ctx, n); err != nil {
		return fmt.Errorf("通知の保存に失敗: %w", err)
	}
	return nil
}

// Get はIDを指定して通知を取得する。
func (m *Mongo) Get(ctx context.Context, id string) (Notification, error) {
	var n Notification
	err := m.collection.FindOne(ctx, idFilter(id)).Decode(&n)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Notification{}, ErrNotFound
	}
	if err != nil {
		return Notification{}, fmt.Errorf("通知の取得に失敗: %w", err)
	}
	return n, nil
}

// List はユーザーの通知を新しい順に返す。
func (m *Mongo) List(ctx context.Context, userID string, limit int) ([]Notification, error) {
	return m.find(ctx, userFilter(userID, false), limit)
}

// RecentUnread はユーザーの未読通知を新しい順に返す。
func (m *Mongo) RecentUnread(ctx context.Context, userID string, limit int) ([]Notification, error) {
	return m.find(ctx, userFilter(userID, true), limit)
}

func (m *Mongo) find(ctx context.Context, filter bson.D, limit int) ([]Notification, error) {
	cursor, err := m.collection.Find(ctx, filter, newestFirst(limit))
	if err != nil {
		return nil, fmt.Errorf("通知一覧の取得に失敗: %w", err)
	}
	out := make([]Notification, 0)
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("通知一覧のデコードに失敗: %w", err)
	}
	return out, nil
}

// MarkAsRead は通知を既読にする。
func (m *Mongo) MarkAsRead(ctx context.Context, id string) error {
	res, err := m.collection.UpdateOne(ctx, idFilter(id), markReadUpdate())
	if err != nil {
		return fmt.Errorf("通知の既読処理に失敗: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkAllAsRead はユーザーの未読通知をすべて既読にする。
func (m *Mongo) MarkAllAsRead(ctx context.Context, userID string) (int64, error) {
	res, err := m.collection.UpdateMany(ctx, userFilter(userID, true), markReadUpdate())
	if err != nil {
		return 0, fmt.Errorf("全通知の既読処理に失敗: %w", err)
	}
	return res.ModifiedCount, nil
}

// Delete は通知を削除する。
func (m *Mongo) Delete(ctx context.Context, id string) error {
	res, err := m.collection.DeleteOne(ctx, idFilter(id))
	if err != nil {
		return fmt.Errorf("通知の削除に失敗: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Close はMongoDBとの接続を切断する。
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func idFilter(id string) bson.D {
	return bson.D{{Key: "_id", Value: id}}
}

// userFilter はユーザーの通知を絞り込むフィルタを返す。unreadOnlyの場合は未読のみ。
func userFilter(userID string, unreadOnly bool) bson.D {
	filter := bson.D{{Key: "userId", Value: userID}}
	if unreadOnly {
		filter = append(filter, bson.E{Key: "read", Value: false})
	}
	return filter
}

// newestFirst は作成日時の降順で最大limit件を取得する検索オプションを返す。
func newestFirst(limit int) *options.FindOptions {
	return options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))
}

func markReadUpdate() bson.D {
	return bson.D{{Key: "$set", Value: bson.D{{Key: "read", Value: true}}}}
}
