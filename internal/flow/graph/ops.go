package graph

import (
	"github.com/currawong-project/libcw-sub004/internal/config"
	"github.com/currawong-project/libcw-sub004/internal/flow/ferr"
)

// Find looks up a variable on owner by (label, sfx, channel). This is
// always a linear scan over the owner's variable list (spec §4.3: "The
// (label, sfx, channel) lookup is always linear over the procedure's
// variable list").
func Find(owner Owner, label, sfx string, channel int) (*Variable, bool) {
	for v := owner.VarsHead(); v != nil; v = v.Next {
		if v.Label == label && v.Sfx == sfx && v.Chan == channel {
			return v, true
		}
	}
	return nil, false
}

// FindByVid looks up a variable by (vid, channel). It uses the owner's
// flat map once built; before the procedure is fully created it falls
// back to a linear scan (spec §4.3).
func FindByVid(owner Owner, vid uint32, channel int) (*Variable, bool) {
	if v, ok := owner.VidLookup(vid, channel); ok {
		return v, true
	}
	if owner.PostCreateReady() {
		// Map is built and authoritative; a miss here is a real miss.
		return nil, false
	}
	for v := owner.VarsHead(); v != nil; v = v.Next {
		if v.Vid == vid && v.Chan == channel {
			return v, true
		}
	}
	return nil, false
}

func findAnyChannelBase(owner Owner, label, sfx string) (*Variable, bool) {
	return Find(owner, label, sfx, AnyChannel)
}

// Create allocates a new variable on owner per spec §4.3 "create". If the
// owner does not yet have an any-channel base for (label, sfx), one is
// allocated first. The new variable is tail-appended to the owner's
// variable list and, if channel != AnyChannel, spliced into the
// (label, sfx) channel-link chain in ascending channel order.
func Create(owner Owner, desc *Descriptor, label, sfx string, vid uint32, channel int, valueCfg *config.Node) (*Variable, error) {
	if desc == nil {
		return nil, ferr.New(ferr.EleNotFound, "no variable descriptor for label %q", label)
	}
	if _, exists := Find(owner, label, sfx, channel); exists {
		return nil, ferr.New(ferr.Duplicate, "variable %s:%s[%d] already exists on %s", label, sfx, channel, owner.Label())
	}

	base, hasBase := findAnyChannelBase(owner, label, sfx)
	if !hasBase && channel != AnyChannel {
		var err error
		base, err = Create(owner, desc, label, sfx, vid, AnyChannel, nil)
		if err != nil {
			return nil, err
		}
	}

	v := &Variable{
		Owner: owner,
		Label: label,
		Sfx:   sfx,
		Vid:   vid,
		Chan:  channel,
		Desc:  desc,
	}
	owner.AppendVar(v)

	if channel != AnyChannel {
		spliceIntoChannelChain(base, v)
	}

	if valueCfg != nil && !desc.IsRuntime() {
		if err := assignFromCfg(owner, v, valueCfg); err != nil {
			return nil, err
		}
	} else if desc.DefaultCfg != nil {
		if err := assignFromCfg(owner, v, desc.DefaultCfg); err != nil {
			return nil, err
		}
	}

	return v, nil
}

// spliceIntoChannelChain inserts v into base's channel-link chain,
// keeping it strictly ascending in channel index with base (any-channel)
// always at the head.
func spliceIntoChannelChain(base, v *Variable) {
	prev := base
	cur := base.ChanLink
	for cur != nil && cur.Chan < v.Chan {
		prev = cur
		cur = cur.ChanLink
	}
	v.ChanLink = cur
	prev.ChanLink = v
}

// Channelize is the polyphonic fan-out operator (spec §4.3 "channelize").
func Channelize(owner Owner, desc *Descriptor, label, sfx string, vid uint32, channel int, valueCfg *config.Node, log Logger) (*Variable, error) {
	if v, exists := Find(owner, label, sfx, channel); exists {
		if valueCfg != nil {
			if err := assignFromCfg(owner, v, valueCfg); err != nil {
				return nil, err
			}
		}
		return v, nil
	}

	base, hasBase := findAnyChannelBase(owner, label, sfx)
	if !hasBase {
		return nil, ferr.New(ferr.EleNotFound, "no any-channel base for %s:%s on %s", label, sfx, owner.Label())
	}

	if valueCfg != nil {
		return Create(owner, desc, label, sfx, vid, channel, valueCfg)
	}

	v, err := Create(owner, desc, label, sfx, vid, channel, nil)
	if err != nil {
		return nil, err
	}

	if base.IsConnected() {
		src := base.Source()
		chain := channelChainVars(src)
		var chosen *Variable
		nonAnyCount := 0
		for _, c := range chain {
			if !c.IsAnyChannel() {
				nonAnyCount++
			}
			if c.Chan == channel {
				chosen = c
			}
		}
		if chosen == nil {
			for _, c := range chain {
				if !c.IsAnyChannel() {
					chosen = c
				}
			}
			if chosen == nil {
				chosen = src
			}
			if log != nil && nonAnyCount > 1 {
				log.Warnf("channelize %s:%s[%d] on %s: no exact channel match on source, falling back to last source channel (probable fan-out-to-one)",
					label, sfx, channel, owner.Label())
			}
		}
		if err := Connect(chosen, v); err != nil {
			return nil, err
		}
		return v, nil
	}

	// base is locally valued: deep-copy base's local value into v.
	v.ring[0] = base.ring[base.ringIdx]
	v.ringIdx = 0
	v.kind = base.kind
	return v, nil
}

// Connect links dst as a destination of src (spec §4.3 "connect").
// Precondition: dst is not already connected to a source.
func Connect(src, dst *Variable) error {
	if dst.src != nil {
		return ferr.New(ferr.InvalidState, "variable %s:%s[%d] already has a source", dst.Label, dst.Sfx, dst.Chan)
	}
	dst.src = src
	src.dst = append(src.dst, dst)
	return nil
}

// Disconnect removes dst from its source's destination list and clears
// dst.src. It does not restore a local value (spec §4.3): the caller is
// expected to reassign.
func Disconnect(dst *Variable) error {
	if dst.src == nil {
		return ferr.New(ferr.InvalidState, "variable %s:%s[%d] has no source to disconnect", dst.Label, dst.Sfx, dst.Chan)
	}
	src := dst.src
	for i, d := range src.dst {
		if d == dst {
			src.dst = append(src.dst[:i], src.dst[i+1:]...)
			break
		}
	}
	dst.src = nil
	return nil
}

// Register is the public registration a class's create callback uses to
// declare a variable (spec §4.3 "register"). If a variable already
// exists for (label, sfx, channel), only its value is updated; otherwise
// the any-channel base is created if missing (with the requested vid)
// and, for a non-any channel, the channelized variable is created. Base
// and channelized siblings always share the same vid.
func Register(owner Owner, desc *Descriptor, label, sfx string, vid uint32, channel int, valueCfg *config.Node) (*Variable, error) {
	if v, exists := Find(owner, label, sfx, channel); exists {
		if valueCfg != nil {
			if err := assignFromCfg(owner, v, valueCfg); err != nil {
				return nil, err
			}
		}
		return v, nil
	}

	if _, hasBase := findAnyChannelBase(owner, label, sfx); !hasBase {
		if _, err := Create(owner, desc, label, sfx, vid, AnyChannel, nil); err != nil {
			return nil, err
		}
	}

	if channel == AnyChannel {
		v, _ := Find(owner, label, sfx, AnyChannel)
		if valueCfg != nil {
			if err := assignFromCfg(owner, v, valueCfg); err != nil {
				return nil, err
			}
		}
		return v, nil
	}

	return Create(owner, desc, label, sfx, vid, channel, valueCfg)
}

func assignFromCfg(owner Owner, v *Variable, cfg *config.Node) error {
	val, err := valueFromConfig(cfg)
	if err != nil {
		return err
	}
	return Set(owner, v, val)
}
