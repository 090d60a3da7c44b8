package batch

import "maps"

// Clone returns a deep copy of the job. Reads served to callers must not
// alias records the scheduler mutates, so every outward-facing job passes
// through here.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	c := *j
	c.Labels = maps.Clone(j.Labels)
	if j.TaskGroups != nil {
		c.TaskGroups = make([]*TaskGroup, len(j.TaskGroups))
		for i, g := range j.TaskGroups {
			c.TaskGroups[i] = g.clone()
		}
	}
	if j.AllocationPolicy != nil {
		ap := *j.AllocationPolicy
		ap.Labels = maps.Clone(j.AllocationPolicy.Labels)
		if j.AllocationPolicy.Location != nil {
			lp := *j.AllocationPolicy.Location
			lp.AllowedLocations = append([]string(nil), j.AllocationPolicy.Location.AllowedLocations...)
			ap.Location = &lp
		}
		c.AllocationPolicy = &ap
	}
	if j.LogsPolicy != nil {
		lp := *j.LogsPolicy
		c.LogsPolicy = &lp
	}
	if j.Notification != nil {
		n := *j.Notification
		n.Events = append([]string(nil), j.Notification.Events...)
		c.Notification = &n
	}
	if j.Status != nil {
		c.Status = j.Status.clone()
	}
	return &c
}

func (g *TaskGroup) clone() *TaskGroup {
	if g == nil {
		return nil
	}
	c := *g
	if g.TaskSpec != nil {
		ts := *g.TaskSpec
		if g.TaskSpec.ComputeResource != nil {
			cr := *g.TaskSpec.ComputeResource
			ts.ComputeResource = &cr
		}
		if g.TaskSpec.Environment != nil {
			ts.Environment = g.TaskSpec.Environment.clone()
		}
		if g.TaskSpec.Runnables != nil {
			ts.Runnables = make([]*Runnable, len(g.TaskSpec.Runnables))
			for i, r := range g.TaskSpec.Runnables {
				ts.Runnables[i] = r.clone()
			}
		}
		c.TaskSpec = &ts
	}
	return &c
}

func (r *Runnable) clone() *Runnable {
	if r == nil {
		return nil
	}
	c := *r
	if r.Container != nil {
		ct := *r.Container
		ct.Commands = append([]string(nil), r.Container.Commands...)
		c.Container = &ct
	}
	if r.Script != nil {
		s := *r.Script
		c.Script = &s
	}
	if r.Barrier != nil {
		b := *r.Barrier
		c.Barrier = &b
	}
	if r.Environment != nil {
		c.Environment = r.Environment.clone()
	}
	return &c
}

func (e *Environment) clone() *Environment {
	if e == nil {
		return nil
	}
	return &Environment{Variables: maps.Clone(e.Variables)}
}

func (s *JobStatus) clone() *JobStatus {
	if s == nil {
		return nil
	}
	c := *s
	c.StatusEvents = cloneEvents(s.StatusEvents)
	if s.TaskGroups != nil {
		c.TaskGroups = make(map[string]*TaskGroupStatus, len(s.TaskGroups))
		for name, tgs := range s.TaskGroups {
			c.TaskGroups[name] = &TaskGroupStatus{Counts: maps.Clone(tgs.Counts)}
		}
	}
	return &c
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	if t.Status != nil {
		st := *t.Status
		if t.Status.StartedAt != nil {
			at := *t.Status.StartedAt
			st.StartedAt = &at
		}
		if t.Status.FinishedAt != nil {
			at := *t.Status.FinishedAt
			st.FinishedAt = &at
		}
		st.StatusEvents = cloneEvents(t.Status.StatusEvents)
		c.Status = &st
	}
	return &c
}

func cloneEvents(events []*StatusEvent) []*StatusEvent {
	if events == nil {
		return nil
	}
	out := make([]*StatusEvent, len(events))
	for i, ev := range events {
		e := *ev
		out[i] = &e
	}
	return out
}
