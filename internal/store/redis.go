package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/npezzotti/go-chat-gateway/internal/types"
	"github.com/redis/go-redis/v9"
)

const DefaultPrefix = "chat:"

type RedisStore struct {
	client      *redis.Client
	prefix      string
	historySize int64
}

// NewRedisClient parses a redis:// URL and verifies the server is reachable.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return client, nil
}

func NewRedisStore(client *redis.Client, prefix string, historySize int) *RedisStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if historySize <= 0 {
		historySize = types.MaxHistory
	}

	return &RedisStore{
		client:      client,
		prefix:      prefix,
		historySize: int64(historySize),
	}
}

func (s *RedisStore) roomsKey() string {
	return s.prefix + "rooms"
}

func (s *RedisStore) membersKey(room string) string {
	return s.prefix + "room:" + room + ":members"
}

func (s *RedisStore) messagesKey(room string) string {
	return s.prefix + "room:" + room + ":messages"
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) AddRoom(ctx context.Context, room string) error {
	if err := s.client.SAdd(ctx, s.roomsKey(), room).Err(); err != nil {
		return fmt.Errorf("add room: %w", err)
	}
	return nil
}

func (s *RedisStore) AddMember(ctx context.Context, room, id string) (bool, int64, error) {
	var added, count *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, s.roomsKey(), room)
		added = pipe.SAdd(ctx, s.membersKey(room), id)
		count = pipe.SCard(ctx, s.membersKey(room))
		return nil
	})
	if err != nil {
		return false, 0, fmt.Errorf("add member: %w", err)
	}

	return added.Val() > 0, count.Val(), nil
}

func (s *RedisStore) RemoveMember(ctx context.Context, room, id string) (bool, int64, error) {
	var removed, count *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.SRem(ctx, s.membersKey(room), id)
		count = pipe.SCard(ctx, s.membersKey(room))
		return nil
	})
	if err != nil {
		return false, 0, fmt.Errorf("remove member: %w", err)
	}

	return removed.Val() > 0, count.Val(), nil
}

func (s *RedisStore) MemberCount(ctx context.Context, room string) (int64, error) {
	n, err := s.client.SCard(ctx, s.membersKey(room)).Result()
	if err != nil {
		return 0, fmt.Errorf("member count: %w", err)
	}
	return n, nil
}

func (s *RedisStore) AppendMessage(ctx context.Context, msg types.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	key := s.messagesKey(msg.Room)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, data)
		pipe.LTrim(ctx, key, 0, s.historySize-1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}

	return nil
}

func (s *RedisStore) ListMessages(ctx context.Context, room string) ([]types.Message, error) {
	raw, err := s.client.LRange(ctx, s.messagesKey(room), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	msgs := make([]types.Message, 0, len(raw))
	for _, r := range raw {
		var m types.Message
		if err := json.Unmarshal([]byte(r), &m); err != nil {
			return nil, fmt.Errorf("unmarshal message: %w", err)
		}
		msgs = append(msgs, m)
	}

	return msgs, nil
}

func (s *RedisStore) ListRooms(ctx context.Context) ([]types.RoomInfo, error) {
	names, err := s.client.SMembers(ctx, s.roomsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	if len(names) == 0 {
		return []types.RoomInfo{}, nil
	}
	sort.Strings(names)

	counts := make([]*redis.IntCmd, len(names))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, name := range names {
			counts[i] = pipe.SCard(ctx, s.membersKey(name))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("count room members: %w", err)
	}

	rooms := make([]types.RoomInfo, len(names))
	for i, name := range names {
		rooms[i] = types.RoomInfo{
			Id:          name,
			Name:        name,
			MemberCount: counts[i].Val(),
		}
	}

	return rooms, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
