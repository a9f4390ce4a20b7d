// Package interval implements ordered genomic interval sets and the set
// algebra the consensus-peak pipeline is built on: merge/union, interval
// subtraction, overlap counting, symmetric resizing (slop), position
// shuffling, and nearest-interval queries, plus BED round-tripping.
//
// A Set stores, for each chromosome, a flattened sequence of interval
// endpoints: the start of interval #k (0-based indexing) is element [2k] and
// its end is element [2k+1], with intervals in increasing order and no two
// intervals overlapping or abutting.  Advantages of this representation over
// a sequence of {start, end} structs include simpler complement/subtraction
// code and reuse of plain []int32 binary search.
package interval
