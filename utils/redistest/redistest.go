// Package redistest 提供测试用的内存 Redis
// 通过 go-redis 的 Hook 拦截命令，不建立网络连接，只实现项目用到的命令
package redistest

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store 内存键值存储
type Store struct {
	mu       sync.Mutex
	now      time.Time
	values   map[string]string
	expires  map[string]time.Time
	failures map[string]error
	calls    map[string]int
}

// NewClient 返回接入内存存储的客户端
func NewClient() (*redis.Client, *Store) {
	s := &Store{
		now:      time.Now(),
		values:   make(map[string]string),
		expires:  make(map[string]time.Time),
		failures: make(map[string]error),
		calls:    make(map[string]int),
	}
	client := redis.NewClient(&redis.Options{Addr: "redistest.invalid:6379"})
	client.AddHook(s)
	return client, s
}

// FailOn 之后所有该命令都返回 err，err 为 nil 时恢复
func (s *Store) FailOn(command string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	command = strings.ToLower(command)
	if err == nil {
		delete(s.failures, command)
		return
	}
	s.failures[command] = err
}

// Calls 命令被调用的次数
func (s *Store) Calls(command string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[strings.ToLower(command)]
}

// FastForward 推进时钟，过期的键随之失效
func (s *Store) FastForward(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = s.now.Add(d)
}

// Get 直接读取键值
func (s *Store) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookup(key)
}

// Put 直接写入键值（无过期时间）
func (s *Store) Put(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	delete(s.expires, key)
}

// TTL 与 Redis 一致：无过期时间返回 -1，键不存在返回 -2
func (s *Store) TTL(key string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ttl(key)
}

func (s *Store) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (s *Store) ProcessHook(_ redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		return s.process(cmd)
	}
}

func (s *Store) ProcessPipelineHook(_ redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		var first error
		for _, cmd := range cmds {
			if err := s.process(cmd); err != nil && first == nil {
				first = err
			}
		}
		return first
	}
}

func (s *Store) lookup(key string) (string, bool) {
	if at, ok := s.expires[key]; ok && !s.now.Before(at) {
		delete(s.values, key)
		delete(s.expires, key)
	}
	v, ok := s.values[key]
	return v, ok
}

func (s *Store) ttl(key string) time.Duration {
	if _, ok := s.lookup(key); !ok {
		return -2
	}
	at, ok := s.expires[key]
	if !ok {
		return -1
	}
	return at.Sub(s.now).Truncate(time.Second)
}

func (s *Store) process(cmd redis.Cmder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := strings.ToLower(cmd.Name())
	s.calls[name]++
	if err := s.failures[name]; err != nil {
		cmd.SetErr(err)
		return err
	}

	args := cmd.Args()
	var err error
	switch name {
	case "get":
		v, ok := s.lookup(str(args[1]))
		if !ok {
			err = redis.Nil
			break
		}
		cmd.(*redis.StringCmd).SetVal(v)
	case "mget":
		vals := make([]interface{}, 0, len(args)-1)
		for _, key := range args[1:] {
			if v, ok := s.lookup(str(key)); ok {
				vals = append(vals, v)
			} else {
				vals = append(vals, nil)
			}
		}
		cmd.(*redis.SliceCmd).SetVal(vals)
	case "set":
		key := str(args[1])
		s.values[key] = str(args[2])
		delete(s.expires, key)
		for i := 3; i+1 < len(args); i += 2 {
			n, _ := strconv.ParseInt(str(args[i+1]), 10, 64)
			switch strings.ToLower(str(args[i])) {
			case "ex":
				s.expires[key] = s.now.Add(time.Duration(n) * time.Second)
			case "px":
				s.expires[key] = s.now.Add(time.Duration(n) * time.Millisecond)
			}
		}
		cmd.(*redis.StatusCmd).SetVal("OK")
	case "del":
		var n int64
		for _, key := range args[1:] {
			if _, ok := s.lookup(str(key)); ok {
				delete(s.values, str(key))
				delete(s.expires, str(key))
				n++
			}
		}
		cmd.(*redis.IntCmd).SetVal(n)
	case "incr":
		key := str(args[1])
		v, _ := s.lookup(key)
		n, convErr := strconv.ParseInt(v, 10, 64)
		if v != "" && convErr != nil {
			err = fmt.Errorf("ERR value is not an integer or out of range")
			break
		}
		n++
		s.values[key] = strconv.FormatInt(n, 10)
		cmd.(*redis.IntCmd).SetVal(n)
	case "expire":
		key := str(args[1])
		_, ok := s.lookup(key)
		if ok {
			n, _ := strconv.ParseInt(str(args[2]), 10, 64)
			s.expires[key] = s.now.Add(time.Duration(n) * time.Second)
		}
		cmd.(*redis.BoolCmd).SetVal(ok)
	case "ttl":
		cmd.(*redis.DurationCmd).SetVal(s.ttl(str(args[1])))
	default:
		err = fmt.Errorf("redistest: unsupported command %q", name)
	}

	if err != nil {
		cmd.SetErr(err)
	}
	return err
}

func str(v interface{}) string {
	switch v := v.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}
