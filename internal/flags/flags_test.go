package flags

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/diewo77/invoicehub/internal/models"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	if err != nil {
		t.Fatal(err)
	}
	if err := db.AutoMigrate(&models.FeatureFlag{}); err != nil {
		t.Fatal(err)
	}
	for _, f := range []models.FeatureFlag{
		{Key: "everyone", Enabled: true, RolloutPercent: 100},
		{Key: "nobody", Enabled: true, RolloutPercent: 0},
		{Key: "off", Enabled: false, RolloutPercent: 100},
		{Key: "half", Enabled: true, RolloutPercent: 50},
	} {
		f := f
		if err := db.Create(&f).Error; err != nil {
			t.Fatal(err)
		}
	}
	return db
}

func TestEvaluate(t *testing.T) {
	svc := NewService(setupDB(t), time.Minute)
	got, err := svc.Evaluate(context.Background(), 7)
	if err != nil {
		t.Fatal(err)
	}
	if !got["everyone"] || got["nobody"] || got["off"] {
		t.Fatalf("unexpected evaluation %v", got)
	}
	if _, ok := got["half"]; !ok {
		t.Fatal("half flag missing")
	}
}

func TestBucketIsStableAndSpread(t *testing.T) {
	if Bucket("half", 42) != Bucket("half", 42) {
		t.Fatal("bucket not deterministic")
	}
	on := 0
	flag := models.FeatureFlag{Key: "half", Enabled: true, RolloutPercent: 50}
	for uid := uint(1); uid <= 1000; uid++ {
		if b := Bucket("half", uid); b < 0 || b > 99 {
			t.Fatalf("bucket out of range: %d", b)
		}
		if On(flag, uid) {
			on++
		}
	}
	if on < 350 || on > 650 {
		t.Fatalf("50%% rollout enabled %d of 1000 users", on)
	}
}

func TestSetInvalidatesCache(t *testing.T) {
	svc := NewService(setupDB(t), time.Hour)
	ctx := context.Background()
	if on, _ := svc.Enabled(ctx, "off", 1); on {
		t.Fatal("off flag should be off")
	}
	if err := svc.Set(ctx, "off", true, 100); err != nil {
		t.Fatal(err)
	}
	if on, _ := svc.Enabled(ctx, "off", 1); !on {
		t.Fatal("flag still served from cache after Set")
	}
	if err := svc.Set(ctx, "missing", true, 100); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("want ErrRecordNotFound, got %v", err)
	}
}

func TestCacheExpiry(t *testing.T) {
	c := NewCache[string, int](time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	c.Set("a", 1)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("got %d %v", v, ok)
	}
	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("a"); ok {
		t.Fatal("entry should have expired")
	}
	c.Set("b", 2)
	c.Invalidate("b")
	if _, ok := c.Get("b"); ok {
		t.Fatal("invalidated entry still present")
	}
}
