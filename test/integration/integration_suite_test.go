// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StornCo Parking Contributors

//go:build integration

// Package integration runs the account API end to end against PostgreSQL
// and Redis containers.
package integration

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	goredis "github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	authredis "github.com/stornco/parking/internal/auth/redis"
	"github.com/stornco/parking/internal/store"
)

var (
	suiteCtx    context.Context
	suiteCancel context.CancelFunc
	pgContainer *tcpostgres.PostgresContainer
	rdContainer *tcredis.RedisContainer
	pool        *pgxpool.Pool
	redisClient *goredis.Client
)

func TestIntegration(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Integration Suite")
}

var _ = BeforeSuite(func() {
	suiteCtx, suiteCancel = context.WithTimeout(context.Background(), 5*time.Minute)

	var err error
	pgContainer, err = tcpostgres.Run(suiteCtx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("parking"),
		tcpostgres.WithUsername("parking"),
		tcpostgres.WithPassword("parking"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	Expect(err).NotTo(HaveOccurred())

	connStr, err := pgContainer.ConnectionString(suiteCtx, "sslmode=disable")
	Expect(err).NotTo(HaveOccurred())

	migrator, err := store.NewMigrator(connStr)
	Expect(err).NotTo(HaveOccurred())
	Expect(migrator.Up()).To(Succeed())
	Expect(migrator.Close()).To(Succeed())

	pool, err = store.Connect(suiteCtx, connStr, store.ConnectOptions{})
	Expect(err).NotTo(HaveOccurred())

	rdContainer, err = tcredis.Run(suiteCtx, "redis:7-alpine")
	Expect(err).NotTo(HaveOccurred())
	redisURL, err := rdContainer.ConnectionString(suiteCtx)
	Expect(err).NotTo(HaveOccurred())
	redisClient, err = authredis.NewClient(suiteCtx, redisURL, authredis.ClientOptions{})
	Expect(err).NotTo(HaveOccurred())
})

var _ = AfterSuite(func() {
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if pool != nil {
		pool.Close()
	}
	ctx := context.Background()
	if rdContainer != nil {
		_ = rdContainer.Terminate(ctx)
	}
	if pgContainer != nil {
		_ = pgContainer.Terminate(ctx)
	}
	if suiteCancel != nil {
		suiteCancel()
	}
})
