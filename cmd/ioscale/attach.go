package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// expandProcessTree resolves each of pids plus all of its descendants
// by walking /proc/<pid>/task/*/children, the same technique
// ja7ad-consumption's proc.ReadProcChildren uses. It's best-effort: a
// PID that has exited or never existed is silently skipped rather than
// failing the whole expansion.
func expandProcessTree(pids []int) []int32 {
	seen := make(map[int]struct{})
	var queue []int
	for _, pid := range pids {
		if _, ok := seen[pid]; !ok {
			seen[pid] = struct{}{}
			queue = append(queue, pid)
		}
	}

	for i := 0; i < len(queue); i++ {
		for _, child := range readProcChildren(queue[i]) {
			if _, ok := seen[child]; !ok {
				seen[child] = struct{}{}
				queue = append(queue, child)
			}
		}
	}

	out := make([]int32, 0, len(queue))
	for _, pid := range queue {
		out = append(out, int32(pid))
	}
	return out
}

func readProcChildren(pid int) []int {
	glob := fmt.Sprintf("/proc/%d/task/*/children", pid)
	paths, _ := filepath.Glob(glob)

	set := map[int]struct{}{}
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		for _, s := range strings.Fields(string(b)) {
			if id, err := strconv.Atoi(s); err == nil {
				set[id] = struct{}{}
			}
		}
	}

	out := make([]int, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}
