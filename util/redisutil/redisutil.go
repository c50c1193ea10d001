// Copyright 2021-2022, Offchain Labs, Inc.
// For license information, see https://github.com/nitro/blob/master/LICENSE

package redisutil

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisClientFromURL creates a new Redis client based on the provided URL.
// The URL scheme can be either `redis` or `redis+sentinel`.
// An empty URL returns a nil client and no error.
func RedisClientFromURL(redisUrl string) (redis.UniversalClient, error) {
	if redisUrl == "" {
		return nil, nil
	}
	u, err := url.Parse(redisUrl)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "redis+sentinel" {
		redisOptions, err := parseFailoverRedisUrl(u)
		if err != nil {
			return nil, err
		}
		return redis.NewFailoverClient(redisOptions), nil
	}
	redisOptions, err := redis.ParseURL(redisUrl)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(redisOptions), nil
}

// Example:
//
//	redis+sentinel://<user>:<password>@<host1>:<port1>,<host2>:<port2>/<master_name>/<db_number>
func parseFailoverRedisUrl(u *url.URL) (*redis.FailoverOptions, error) {
	o := &redis.FailoverOptions{}
	o.SentinelUsername, o.SentinelPassword = getUserPassword(u)
	o.SentinelAddrs = getAddressesWithDefaults(u)
	f := strings.FieldsFunc(u.Path, func(r rune) bool {
		return r == '/'
	})
	switch len(f) {
	case 0:
		return nil, fmt.Errorf("redis: master name is required")
	case 1:
		o.DB = 0
		o.MasterName = f[0]
	case 2:
		o.MasterName = f[0]
		var err error
		if o.DB, err = strconv.Atoi(f[1]); err != nil {
			return nil, fmt.Errorf("redis: invalid database number: %q", f[1])
		}
	default:
		return nil, fmt.Errorf("redis: invalid URL path: %s", u.Path)
	}
	if db := u.Query().Get("db"); db != "" {
		var err error
		if o.DB, err = strconv.Atoi(db); err != nil {
			return nil, fmt.Errorf("redis: invalid database number: %w", err)
		}
	}
	return o, nil
}

func getUserPassword(u *url.URL) (string, string) {
	var user, password string
	if u.User != nil {
		user = u.User.Username()
		if p, ok := u.User.Password(); ok {
			password = p
		}
	}
	return user, password
}

func getAddressesWithDefaults(u *url.URL) []string {
	urlHosts := strings.Split(u.Host, ",")
	var addresses []string
	for _, urlHost := range urlHosts {
		host, port, err := net.SplitHostPort(urlHost)
		if err != nil {
			host = urlHost
		}
		if host == "" {
			host = "localhost"
		}
		if port == "" {
			port = "6379"
		}
		addresses = append(addresses, net.JoinHostPort(host, port))
	}
	return addresses
}
