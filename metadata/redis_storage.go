package metadata

import (
	"context"
	"fmt"
	"strings"

	"github.com/fluxionlabs/fluxion/logger"
	"github.com/fluxionlabs/fluxion/model"
	"github.com/fluxionlabs/fluxion/util"
	rd "github.com/go-redis/redis/v9"
	"go.uber.org/zap"
)

const flowDefKey string = "FLOW"

type Config struct {
	Addrs     []string
	Namespace string
}

type redisStorage struct {
	client     rd.UniversalClient
	namespace  string
	flowEncDec util.EncoderDecoder[model.FlowDefinition]
}

func NewRedisStorage(conf Config) Storage {
	client := rd.NewUniversalClient(&rd.UniversalOptions{
		Addrs: conf.Addrs,
	})
	return &redisStorage{
		client:     client,
		namespace:  conf.Namespace,
		flowEncDec: util.NewJsonEncoderDecoder[model.FlowDefinition](),
	}
}

func (s *redisStorage) key(args ...string) string {
	return fmt.Sprintf("%s:%s", s.namespace, strings.Join(args, ":"))
}

func (s *redisStorage) SaveFlowDefinition(def model.FlowDefinition) error {
	data, err := s.flowEncDec.Encode(def)
	if err != nil {
		return err
	}
	ctx := context.Background()
	if err := s.client.HSet(ctx, s.key(flowDefKey), []string{def.ID, string(data)}).Err(); err != nil {
		logger.Error("error in saving flow definition", zap.String("flow", def.ID), zap.Error(err))
		return err
	}
	return nil
}

func (s *redisStorage) DeleteFlowDefinition(id string) error {
	ctx := context.Background()
	if err := s.client.HDel(ctx, s.key(flowDefKey), id).Err(); err != nil {
		logger.Error("error in deleting flow definition", zap.String("flow", id), zap.Error(err))
		return err
	}
	return nil
}

func (s *redisStorage) GetFlowDefinition(id string) (*model.FlowDefinition, error) {
	ctx := context.Background()
	val, err := s.client.HGet(ctx, s.key(flowDefKey), id).Result()
	if err != nil {
		if err == rd.Nil {
			return nil, NotFoundError{FlowID: id}
		}
		logger.Error("error in getting flow definition", zap.String("flow", id), zap.Error(err))
		return nil, err
	}
	return s.flowEncDec.Decode([]byte(val))
}
