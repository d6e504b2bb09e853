package compiler

import (
	"regexp"
	"strings"

	"github.com/aretw0/codeflow/pkg/domain"
)

var (
	partitionMarker = regexp.MustCompile(`\bpartition`)
	quickSortMarker = regexp.MustCompile(`\bquickSort`)
	whileMarker     = regexp.MustCompile(`\bwhile\s*\(`)
	keyMarker       = regexp.MustCompile(`\bkey\b`)
	heapifyMarker   = regexp.MustCompile(`\bheapify`)
	bubbleBound     = regexp.MustCompile(`length\s*-\s*i\s*-\s*1`)
	minIdxMarker    = regexp.MustCompile(`\bminIdx\b`)

	trackedArrayPattern = regexp.MustCompile(`\b(?:let|const|var)\s+([A-Za-z_$][\w$]*)\s*=\s*\[`)
)

// DetectAlgorithm labels a whole program by its characteristic tokens.
// The first matching rule wins; unrecognized programs are Unknown, which
// traces every array mutation.
func DetectAlgorithm(src string) domain.AlgorithmLabel {
	partition := partitionMarker.MatchString(src)
	heapify := heapifyMarker.MatchString(src)
	switch {
	case partition && quickSortMarker.MatchString(src):
		return domain.QuickSort
	case whileMarker.MatchString(src) && keyMarker.MatchString(src) && !partition:
		return domain.InsertionSort
	case strings.Contains(src, "merge") && !partition && !heapify:
		return domain.MergeSort
	case heapify && !partition:
		return domain.HeapSort
	case bubbleBound.MatchString(src):
		return domain.BubbleSort
	case minIdxMarker.MatchString(src):
		return domain.SelectionSort
	}
	return domain.Unknown
}

// IsInterestingMutation reports whether an array-mutation line is snapshotted
// for the given label. Whitespace is ignored when matching.
func IsInterestingMutation(label domain.AlgorithmLabel, text string) bool {
	norm := strings.Join(strings.Fields(stripLineComment(text)), "")
	switch label {
	case domain.QuickSort:
		return strings.Contains(norm, "arr[i]=arr[j]") || strings.Contains(norm, "arr[i+1]=arr[high]")
	case domain.MergeSort:
		return strings.Contains(norm, "arr[k]=")
	case domain.HeapSort:
		return strings.Contains(norm, "arr[i]=arr[largest]") || strings.Contains(norm, "arr[0]=arr[i]")
	}
	return true
}

// TrackedArrayName picks the array whose states are snapshotted: the requested
// name when it is a valid identifier, else the first array literal declaration,
// else "arr".
func TrackedArrayName(src, requested string) string {
	if requested = strings.TrimSpace(requested); identPattern.MatchString(requested) {
		return requested
	}
	if m := trackedArrayPattern.FindStringSubmatch(src); m != nil {
		return m[1]
	}
	return domain.DefaultTrackedArray
}
