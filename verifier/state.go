package verifier

import "github.com/lililuanluan/weazer/graph"

// A State is an execution graph another driver can explore from. Its
// alternatives are left to the driver that produced it.
type State struct {
	Graph   *graph.ExecutionGraph
	Choices ChoiceMap
}

func (st *State) Clone() *State {
	return &State{Graph: st.Graph.Clone(), Choices: st.Choices.Clone()}
}

func (st *State) execution() *Execution {
	c := st.Clone()
	return NewExecution(c.Graph, c.Choices)
}

// Returns a copy of the current execution as a state
func (d *Driver) exportState() *State {
	ex := d.execs.top()
	return (&State{Graph: ex.Graph, Choices: ex.Choices}).Clone()
}
