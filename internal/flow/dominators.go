package flow

// computeIdom computes immediate dominators over the graph given by succs,
// reachable from entry, using the Cooper/Harvey/Kennedy iterative
// algorithm ("A Simple, Fast Dominance Algorithm", 2001). Returns a map
// from node to its immediate dominator; entry maps to itself.
//
// The same routine computes post-dominators: the caller builds a reversed
// graph (predecessor edges become successor edges) rooted at a single
// virtual exit node connecting every block with no successors, and calls
// this with that graph instead — post-dominance is just dominance over
// the reverse CFG.
func computeIdom(entry int, succs map[int][]int) map[int]int {
	postNumber := map[int]int{}
	visited := map[int]bool{}
	next := 0
	var visit func(int)
	visit = func(n int) {
		if visited[n] {
			return
		}
		visited[n] = true
		for _, s := range succs[n] {
			visit(s)
		}
		postNumber[n] = next
		next++
	}
	visit(entry)

	preds := map[int][]int{}
	for n, ss := range succs {
		if !visited[n] {
			continue
		}
		for _, s := range ss {
			if visited[s] {
				preds[s] = append(preds[s], n)
			}
		}
	}

	rpo := make([]int, 0, len(postNumber))
	for n := range postNumber {
		rpo = append(rpo, n)
	}
	sortByPostDesc(rpo, postNumber)

	idom := map[int]int{entry: entry}
	changed := true
	for changed {
		changed = false
		for _, n := range rpo {
			if n == entry {
				continue
			}
			var newIdom int
			set := false
			for _, p := range preds[n] {
				if _, ok := idom[p]; !ok {
					continue
				}
				if !set {
					newIdom = p
					set = true
					continue
				}
				newIdom = intersect(newIdom, p, idom, postNumber)
			}
			if !set {
				continue
			}
			if old, ok := idom[n]; !ok || old != newIdom {
				idom[n] = newIdom
				changed = true
			}
		}
	}
	return idom
}

// sortByPostDesc orders nodes by descending postNumber, i.e. a
// reverse-postorder traversal (entry, with the highest postNumber, first).
func sortByPostDesc(nodes []int, postNumber map[int]int) {
	for i := 1; i < len(nodes); i++ {
		for j := i; j > 0 && postNumber[nodes[j-1]] < postNumber[nodes[j]]; j-- {
			nodes[j-1], nodes[j] = nodes[j], nodes[j-1]
		}
	}
}

func intersect(a, b int, idom map[int]int, postNumber map[int]int) int {
	for a != b {
		for postNumber[a] < postNumber[b] {
			a = idom[a]
		}
		for postNumber[b] < postNumber[a] {
			b = idom[b]
		}
	}
	return a
}
