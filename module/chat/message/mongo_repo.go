package message

import (
	"context"

	"SCProject/data/database/mgo/mongoutil"
	"SCProject/module/chat/model"
	"SCProject/service/mgo"
	"SCProject/tools/errs"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRepo 每次调用现取 DB 句柄（连接是异步起的，晚就绪/掉线重连
// 都不用重新装配）；没就绪统一回 ErrNotConfigured。
type MongoRepo struct {
	db func() *mongo.Database
}

func NewMongoRepo(db *mongo.Database) *MongoRepo {
	return &MongoRepo{db: func() *mongo.Database { return db }}
}

// NewDefaultMongoRepo 用全局 mongo 管理器。
func NewDefaultMongoRepo() *MongoRepo {
	return &MongoRepo{db: mgo.GetDB}
}

func (r *MongoRepo) coll() (*mongo.Collection, error) {
	db := r.db()
	if db == nil {
		return nil, errs.ErrNotConfigured.WrapMsg("message store not ready")
	}
	return db.Collection((&model.Message{}).GetTableName()), nil
}

// Insert 原子创建：_id 主键冲突即“已存在”。
func (r *MongoRepo) Insert(ctx context.Context, m *model.Message) error {
	coll, err := r.coll()
	if err != nil {
		return err
	}
	_, err = coll.InsertOne(ctx, m)
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateID
	}
	if mongoutil.IsTransient(err) {
		return errs.ErrStoreTransient.WrapMsg(err.Error())
	}
	return err
}

func (r *MongoRepo) Get(ctx context.Context, id string) (*model.Message, error) {
	coll, err := r.coll()
	if err != nil {
		return nil, err
	}
	var m model.Message
	err = coll.FindOne(ctx, bson.M{"_id": id}).Decode(&m)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		if mongoutil.IsTransient(err) {
			return nil, errs.ErrStoreTransient.WrapMsg(err.Error())
		}
		return nil, err
	}
	return &m, nil
}

func (r *MongoRepo) ListPair(ctx context.Context, a, b string) ([]model.Message, error) {
	coll, err := r.coll()
	if err != nil {
		return nil, err
	}
	filter := bson.M{"$or": bson.A{
		bson.M{"from_id": a, "to_id": b},
		bson.M{"from_id": b, "to_id": a},
	}}
	cur, err := coll.Find(ctx, filter, options.Find().SetSort(bson.M{"timestamp": 1}))
	if err != nil {
		return nil, err
	}
	defer func() { _ = cur.Close(ctx) }()
	var out []model.Message
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
