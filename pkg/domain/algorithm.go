package domain

// AlgorithmLabel classifies a whole program by its characteristic tokens.
type AlgorithmLabel string

const (
	QuickSort     AlgorithmLabel = "QuickSort"
	InsertionSort AlgorithmLabel = "InsertionSort"
	MergeSort     AlgorithmLabel = "MergeSort"
	HeapSort      AlgorithmLabel = "HeapSort"
	BubbleSort    AlgorithmLabel = "BubbleSort"
	SelectionSort AlgorithmLabel = "SelectionSort"
	Unknown       AlgorithmLabel = "Unknown"
)
