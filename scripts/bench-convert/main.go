// bench-convert measures batch conversion throughput and heap use for a range of
// worker counts on a Unity project, or on generated scripts when no project is given.
//
// Usage:
//
//	go run ./scripts/bench-convert --dir ~/sources/MyGame/Assets --workers 1,2,4,8 \
//	  --profile-dir docs/profiles/convert
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Sumatoshi-tech/gdport/pkg/convert"
)

const syntheticScript = `using UnityEngine;

public class Unit%d : MonoBehaviour
{
    public Sprite[] frames;
    SpriteRenderer body;

    void Start()
    {
        body = GetComponent<SpriteRenderer>();
    }

    void Update()
    {
        float x = transform.position.x;
        Debug.Log(x * Time.deltaTime);
        body.enabled = x > 0;
    }
}
`

func main() {
	dir := flag.String("dir", "", "directory of C# scripts (default: generated scripts)")
	count := flag.Int("count", 500, "number of generated scripts when --dir is empty")
	workerList := flag.String("workers", "1,2,4,"+strconv.Itoa(runtime.NumCPU()), "comma-separated worker counts")
	profileDir := flag.String("profile-dir", "", "directory to write CPU and heap profiles")

	flag.Parse()

	workers, err := parseWorkers(*workerList)
	if err != nil {
		log.Fatalf("--workers: %v", err)
	}

	conv := convert.New(nil)

	root := *dir
	if root == "" {
		root, err = generateScripts(*count)
		if err != nil {
			log.Fatalf("generate scripts: %v", err)
		}
		defer os.RemoveAll(root)
	}

	paths, err := conv.CollectScripts(root)
	if err != nil {
		log.Fatalf("collect scripts: %v", err)
	}

	log.Printf("converting %d scripts from %s", len(paths), root)

	if *profileDir != "" {
		stop := startCPUProfile(*profileDir)
		defer stop()
	}

	for _, n := range workers {
		runOnce(conv, paths, n)
	}

	if *profileDir != "" {
		writeHeapProfile(filepath.Join(*profileDir, "heap.prof"))
	}
}

func runOnce(conv *convert.Converter, paths []string, workers int) {
	runtime.GC()

	var before, after runtime.MemStats

	runtime.ReadMemStats(&before)

	start := time.Now()
	results, err := conv.ConvertAll(context.Background(), paths, workers, convert.FileOptions{DryRun: true})
	elapsed := time.Since(start)

	runtime.ReadMemStats(&after)

	var (
		rewrites int
		bytes    int
	)

	for _, fr := range results {
		rewrites += fr.Stats.Total()
		bytes += len(fr.Source)
	}

	failed := 0
	if err != nil {
		for _, fr := range results {
			if fr.Err != nil {
				failed++
			}
		}
	}

	log.Printf("workers=%-3d files=%d failed=%d rewrites=%d time=%v rate=%s/s allocated=%s heap=%s",
		workers, len(results), failed, rewrites, elapsed.Round(time.Millisecond),
		humanize.Bytes(uint64(float64(bytes)/elapsed.Seconds())),
		humanize.Bytes(after.TotalAlloc-before.TotalAlloc),
		humanize.Bytes(after.HeapInuse))
}

func parseWorkers(list string) ([]int, error) {
	var out []int

	for field := range strings.SplitSeq(list, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid worker count %q", field)
		}

		out = append(out, n)
	}

	return out, nil
}

func generateScripts(count int) (string, error) {
	root, err := os.MkdirTemp("", "gdport-bench-")
	if err != nil {
		return "", fmt.Errorf("temp dir: %w", err)
	}

	for idx := range count {
		path := filepath.Join(root, fmt.Sprintf("Unit%d.cs", idx))

		err = os.WriteFile(path, fmt.Appendf(nil, syntheticScript, idx), 0o600)
		if err != nil {
			return "", fmt.Errorf("write %s: %w", path, err)
		}
	}

	return root, nil
}

func startCPUProfile(dir string) func() {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Fatalf("mkdir profile-dir: %v", err)
	}

	cpuPath := filepath.Join(dir, "cpu.prof")

	cpuFile, err := os.Create(cpuPath)
	if err != nil {
		log.Fatalf("create cpu profile: %v", err)
	}

	if err := pprof.StartCPUProfile(cpuFile); err != nil {
		log.Fatalf("start cpu profile: %v", err)
	}

	log.Printf("CPU profiling enabled -> %s", cpuPath)

	return func() {
		pprof.StopCPUProfile()
		cpuFile.Close()
	}
}

func writeHeapProfile(path string) {
	file, err := os.Create(path)
	if err != nil {
		log.Printf("warning: create heap profile %s: %v", path, err)

		return
	}
	defer file.Close()

	if err := pprof.WriteHeapProfile(file); err != nil {
		log.Printf("warning: write heap profile %s: %v", path, err)
	}
}
