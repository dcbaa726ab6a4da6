package merge

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ytget/psn-updater/internal/model"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func part(dir, url, file string, offset int64, number int) model.DownloadTask {
	return model.DownloadTask{
		Entry:       model.PackageEntry{Version: "01.05", URL: url, Offset: offset, PartNumber: number},
		Destination: filepath.Join(dir, file),
	}
}

func TestMergeParts(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "EP0001-CUSA00127_00-A0105_0.pkg"), "hello ")
	writeFile(t, filepath.Join(dir, "EP0001-CUSA00127_00-A0105_1.pkg"), "world")

	// a stale merged file is overwritten
	writeFile(t, filepath.Join(dir, "EP0001-CUSA00127_00-A0105.pkg"), strings.Repeat("x", 40))

	parts := []model.DownloadTask{
		part(dir, "http://h/EP0001-CUSA00127_00-A0105_1.pkg", "EP0001-CUSA00127_00-A0105_1.pkg", 6, 2),
		part(dir, "http://h/EP0001-CUSA00127_00-A0105_0.pkg", "EP0001-CUSA00127_00-A0105_0.pkg", 0, 1),
	}

	var merged []int
	outputs, err := Parts(context.Background(), parts, func(n int) {
		merged = append(merged, n)
	})
	if err != nil {
		t.Fatalf("Parts: %v", err)
	}

	expectedPath := filepath.Join(dir, "EP0001-CUSA00127_00-A0105.pkg")
	if len(outputs) != 1 || outputs[0] != expectedPath {
		t.Fatalf("Expected output %s, got %v", expectedPath, outputs)
	}
	got, err := os.ReadFile(expectedPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello world" {
		t.Errorf("Expected 'hello world', got %q", got)
	}
	if len(merged) != 2 || merged[0] != 1 || merged[1] != 2 {
		t.Errorf("Expected progress for parts 1 and 2, got %v", merged)
	}
}

func TestMergeUsesTaskDestinations(t *testing.T) {
	dir := t.TempDir()
	// the first part was renamed on a file name collision
	writeFile(t, filepath.Join(dir, "a_0.pkg"), "WRONG!")
	writeFile(t, filepath.Join(dir, "a_0-2.pkg"), "hello ")
	writeFile(t, filepath.Join(dir, "a_1.pkg"), "world")

	parts := []model.DownloadTask{
		part(dir, "http://h/a_0.pkg", "a_0-2.pkg", 0, 1),
		part(dir, "http://h/a_1.pkg", "a_1.pkg", 6, 2),
	}

	service := NewService(nil)
	task, err := service.Merge(context.Background(), parts)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if task.Dir != dir {
		t.Errorf("Expected dir %s, got %s", dir, task.Dir)
	}

	got, err := os.ReadFile(filepath.Join(dir, "a.pkg"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello world" {
		t.Errorf("Expected 'hello world', got %q", got)
	}
}

func TestMergeRejectsNonParts(t *testing.T) {
	dir := t.TempDir()
	parts := []model.DownloadTask{
		part(dir, "http://h/a_0.pkg", "a_0.pkg", 0, 1),
		part(dir, "http://h/whole.pkg", "whole.pkg", 0, 0),
	}

	service := NewService(nil)
	task, err := service.Merge(context.Background(), parts)
	if !errors.Is(err, ErrNotMergeable) {
		t.Fatalf("Expected ErrNotMergeable, got %v", err)
	}
	if task.Status != model.TaskStatusFailed {
		t.Errorf("Expected Failed, got %s", task.Status)
	}

	if _, err := Parts(context.Background(), nil, nil); !errors.Is(err, ErrNotMergeable) {
		t.Errorf("Expected ErrNotMergeable for no parts, got %v", err)
	}
}

func TestMergeRejectsMismatchedNames(t *testing.T) {
	parts := []model.DownloadTask{part(t.TempDir(), "http://h/a_3.pkg", "a_3.pkg", 0, 1)}

	_, err := Parts(context.Background(), parts, nil)
	if !errors.Is(err, ErrFileName) {
		t.Fatalf("Expected ErrFileName, got %v", err)
	}
}

func TestMergeMissingPart(t *testing.T) {
	parts := []model.DownloadTask{part(t.TempDir(), "http://h/a_0.pkg", "a_0.pkg", 0, 1)}

	_, err := Parts(context.Background(), parts, nil)
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Expected missing file error, got %v", err)
	}
}

func TestMergeCancelled(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a_0.pkg"), "data")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Parts(ctx, []model.DownloadTask{part(dir, "http://h/a_0.pkg", "a_0.pkg", 0, 1)}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
}

func TestTaskPercent(t *testing.T) {
	task := Task{Parts: 4, PartsMerged: 1}
	if task.Percent() != 25 {
		t.Errorf("Expected 25, got %d", task.Percent())
	}
	if (Task{}).Percent() != 0 {
		t.Error("Expected 0 for empty task")
	}
}

func TestGenerateTaskID(t *testing.T) {
	id1 := generateTaskID()
	id2 := generateTaskID()
	if !strings.HasPrefix(id1, TaskIDPrefix) {
		t.Errorf("Expected prefix %s, got %s", TaskIDPrefix, id1)
	}
	if id1 == id2 {
		t.Error("Expected unique task ids")
	}
}
