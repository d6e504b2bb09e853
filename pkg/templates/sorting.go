package templates

var sortingTemplates = []Template{
	{
		Name:        "bubble",
		Title:       "Bubble Sort",
		Description: "Repeatedly swaps adjacent elements that are out of order.",
		Source: `function bubbleSort(arr) {
  let n = arr.length;
  for (let i = 0; i < n - 1; i++) {
    for (let j = 0; j < arr.length - i - 1; j++) {
      if (arr[j] > arr[j + 1]) {
        [arr[j], arr[j + 1]] = [arr[j + 1], arr[j]];
      }
    }
  }
  return arr;
}

let arr = [%input%];
bubbleSort(arr);
console.log(arr);
`,
	},
	{
		Name:        "selection",
		Title:       "Selection Sort",
		Description: "Moves the smallest remaining element to the front on each pass.",
		Source: `function selectionSort(arr) {
  let n = arr.length;
  for (let i = 0; i < n - 1; i++) {
    let minIdx = i;
    for (let j = i + 1; j < n; j++) {
      if (arr[j] < arr[minIdx]) {
        minIdx = j;
      }
    }
    if (minIdx !== i) {
      [arr[i], arr[minIdx]] = [arr[minIdx], arr[i]];
    }
  }
  return arr;
}

let arr = [%input%];
selectionSort(arr);
console.log(arr);
`,
	},
	{
		Name:        "insertion",
		Title:       "Insertion Sort",
		Description: "Inserts each element into the sorted prefix before it.",
		Source: `function insertionSort(arr) {
  for (let i = 1; i < arr.length; i++) {
    let key = arr[i];
    let j = i - 1;
    while (j >= 0 && arr[j] > key) {
      arr[j + 1] = arr[j];
      j--;
    }
    arr[j + 1] = key;
  }
  return arr;
}

let arr = [%input%];
insertionSort(arr);
console.log(arr);
`,
	},
	{
		Name:        "merge",
		Title:       "Merge Sort",
		Description: "Sorts both halves recursively, then merges them.",
		Source: `function merge(arr, left, mid, right) {
  let L = arr.slice(left, mid + 1);
  let R = arr.slice(mid + 1, right + 1);
  let i = 0;
  let j = 0;
  let k = left;
  while (i < L.length && j < R.length) {
    if (L[i] <= R[j]) {
      arr[k] = L[i];
      i++;
    } else {
      arr[k] = R[j];
      j++;
    }
    k++;
  }
  while (i < L.length) {
    arr[k] = L[i];
    i++;
    k++;
  }
  while (j < R.length) {
    arr[k] = R[j];
    j++;
    k++;
  }
}

function mergeSort(arr, left, right) {
  if (left >= right) {
    return;
  }
  let mid = Math.floor((left + right) / 2);
  mergeSort(arr, left, mid);
  mergeSort(arr, mid + 1, right);
  merge(arr, left, mid, right);
}

let arr = [%input%];
mergeSort(arr, 0, arr.length - 1);
console.log(arr);
`,
	},
	{
		Name:        "quick",
		Title:       "Quick Sort",
		Description: "Partitions around the last element as pivot, then sorts each side.",
		Source: `function partition(arr, low, high) {
  let pivot = arr[high];
  let i = low - 1;
  for (let j = low; j < high; j++) {
    if (arr[j] < pivot) {
      i++;
      let temp = arr[i];
      arr[i] = arr[j];
      arr[j] = temp;
    }
  }
  let temp = arr[i + 1];
  arr[i + 1] = arr[high];
  arr[high] = temp;
  return i + 1;
}

function quickSort(arr, low, high) {
  if (low < high) {
    let pi = partition(arr, low, high);
    quickSort(arr, low, pi - 1);
    quickSort(arr, pi + 1, high);
  }
}

let arr = [%input%];
quickSort(arr, 0, arr.length - 1);
console.log(arr);
`,
	},
	{
		Name:        "heap",
		Title:       "Heap Sort",
		Description: "Builds a max heap, then repeatedly moves the root to the end.",
		Source: `function heapify(arr, n, i) {
  let largest = i;
  let left = 2 * i + 1;
  let right = 2 * i + 2;
  if (left < n && arr[left] > arr[largest]) {
    largest = left;
  }
  if (right < n && arr[right] > arr[largest]) {
    largest = right;
  }
  if (largest !== i) {
    let swap = arr[i];
    arr[i] = arr[largest];
    arr[largest] = swap;
    heapify(arr, n, largest);
  }
}

function heapSort(arr) {
  let n = arr.length;
  for (let i = Math.floor(n / 2) - 1; i >= 0; i--) {
    heapify(arr, n, i);
  }
  for (let i = n - 1; i > 0; i--) {
    let temp = arr[0];
    arr[0] = arr[i];
    arr[i] = temp;
    heapify(arr, i, 0);
  }
  return arr;
}

let arr = [%input%];
heapSort(arr);
console.log(arr);
`,
	},
}
