package service

import (
	"school_quiz_backend/internal/config"
	"testing"
	"time"
)

func TestCacheKeysAreRoleScoped(t *testing.T) {
	student := quizCacheKey("quiz-1", "student")
	teacher := quizCacheKey("quiz-1", "teacher")
	if student == teacher {
		t.Fatal("student and teacher views must not share a cache entry")
	}
}

func TestListKeysIncludePagination(t *testing.T) {
	a := classQuizzesCacheKey("school-1", "class-1", "student", 1, 20)
	b := classQuizzesCacheKey("school-1", "class-1", "student", 2, 20)
	if a == b {
		t.Fatal("different pages must map to different keys")
	}
}

func TestTTLsFromConfigDefaults(t *testing.T) {
	ttls := TTLsFromConfig(&config.CacheConfig{})
	if ttls.Quiz <= 0 || ttls.List <= 0 || ttls.Result <= 0 {
		t.Fatalf("zero config must fall back to positive defaults: %+v", ttls)
	}

	custom := TTLsFromConfig(&config.CacheConfig{QuizTTLSeconds: 42})
	if custom.Quiz != 42*time.Second {
		t.Fatalf("expected 42s quiz TTL, got %s", custom.Quiz)
	}
}
