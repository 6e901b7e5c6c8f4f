package model

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const LastReadTableName = "last_read"

// LastRead 某用户在某会话里的已读水位。
// key = (user_id, conversation_id)，value = 已读到的最新消息时间。
type LastRead struct {
	UserID         string    `bson:"user_id" json:"userId"`
	ConversationID string    `bson:"conversation_id" json:"conversationId"`
	ReadAt         time.Time `bson:"read_at" json:"readAt"`
	UpdatedAt      int64     `bson:"updated_at" json:"-"` // Unix ms
}

func (lr *LastRead) GetTableName() string {
	return LastReadTableName
}

// MongoWatermarks 把 last_read 集合适配成客户端同步器的持久层。
type MongoWatermarks struct {
	coll *mongo.Collection
}

func NewMongoWatermarks(db *mongo.Database) *MongoWatermarks {
	return &MongoWatermarks{coll: db.Collection((&LastRead{}).GetTableName())}
}

// Get 读水位；没读过返回 found=false
func (w *MongoWatermarks) Get(ctx context.Context, userID, convID string) (time.Time, bool, error) {
	var lr LastRead
	err := w.coll.FindOne(ctx, bson.M{
		"user_id":         userID,
		"conversation_id": convID,
	}).Decode(&lr)
	if err == mongo.ErrNoDocuments {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return lr.ReadAt.UTC(), true, nil
}

// Set 推进水位。$max 保证单调：慢设备/坏时钟的回写不会把水位拉回去。
// 返回落库后的实际值（可能比入参新）。
func (w *MongoWatermarks) Set(ctx context.Context, userID, convID string, at time.Time) (time.Time, error) {
	res := w.coll.FindOneAndUpdate(ctx,
		bson.M{"user_id": userID, "conversation_id": convID},
		bson.M{
			"$max": bson.M{"read_at": at.UTC()},
			"$set": bson.M{"updated_at": time.Now().UnixMilli()},
		},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	)
	var out LastRead
	if err := res.Decode(&out); err != nil && err != mongo.ErrNoDocuments {
		return time.Time{}, err
	}
	if out.ReadAt.IsZero() {
		return at.UTC(), nil
	}
	return out.ReadAt.UTC(), nil
}
