package vmopts

import (
	"fmt"
	"math"

	"go.uber.org/zap"
)

// HeapSizing is the heap geometry derived by ergonomics.
type HeapSizing struct {
	PhysicalMemory    uint64 `json:"physicalMemory" yaml:"physicalMemory"`
	Min               uint64 `json:"min" yaml:"min"`
	Initial           uint64 `json:"initial" yaml:"initial"`
	Max               uint64 `json:"max" yaml:"max"`
	Young             uint64 `json:"young" yaml:"young"`
	Alignment         uint64 `json:"alignment" yaml:"alignment"`
	CompressedOopsMax uint64 `json:"compressedOopsMax" yaml:"compressedOopsMax"`
	CompressedOops    bool   `json:"compressedOops" yaml:"compressedOops"`
}

// gcProfile holds the collector-specific inputs to heap sizing.
type gcProfile struct {
	flag string
	name string
	// alignment is the largest heap alignment the collector may require.
	alignment uint64
	// virtToPhys is how much address space the collector reserves per byte
	// of heap.
	virtToPhys uint64
}

var gcProfiles = []gcProfile{
	{flag: "UseSerialGC", name: "Serial", alignment: 512 * kilo, virtToPhys: 1},
	{flag: "UseParallelGC", name: "Parallel", alignment: 512 * kilo, virtToPhys: 1},
	{flag: "UseG1GC", name: "G1", alignment: 32 * mega, virtToPhys: 1},
	{flag: "UseZGC", name: "Z", alignment: 2 * mega, virtToPhys: 16},
	{flag: "UseShenandoahGC", name: "Shenandoah", alignment: 32 * mega, virtToPhys: 1},
	{flag: "UseEpsilonGC", name: "Epsilon", alignment: 512 * kilo, virtToPhys: 1},
}

const (
	serverMemory  = 2*giga - 256*mega
	serverCPUs    = 2
	aggressiveMin = 256 * mega
)

// Ergonomics derives flag values from the host and the flags already set.
type Ergonomics struct {
	reg  *Registry
	host Host
	log  *zap.Logger

	gc                   gcProfile
	conservativeMaxAlign uint64
	defaultHeapBase      uint64
}

// NewErgonomics creates an ergonomics pass over reg.
func NewErgonomics(reg *Registry, host Host, logger *zap.Logger) *Ergonomics {
	if host == nil {
		host = HostInfo()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Ergonomics{reg: reg, host: host, log: logger, gc: gcProfiles[0]}
	if f := reg.Lookup("HeapBaseMinAddress"); f != nil {
		e.defaultHeapBase = f.Default().u
	}
	return e
}

// IsServerClass reports whether the host gets the throughput defaults.
func (e *Ergonomics) IsServerClass() bool {
	return e.host.ProcessorCount() >= serverCPUs && e.host.PhysicalMemory() >= serverMemory
}

// SelectGC returns the selected collector, choosing one when no Use*GC
// flag is set. More than one selected collector is an error.
func (e *Ergonomics) SelectGC() (string, error) {
	var selected []gcProfile
	for _, p := range gcProfiles {
		if e.reg.Bool(p.flag) {
			selected = append(selected, p)
		}
	}

	switch len(selected) {
	case 0:
		flag := "UseSerialGC"
		if e.IsServerClass() {
			flag = "UseG1GC"
		}
		if err := e.reg.setBool(flag, true, OriginErgonomic); err != nil {
			return "", err
		}
		e.gc = profileFor(flag)
	case 1:
		e.gc = selected[0]
	default:
		return "", argError(KindConsistency, "", "Multiple garbage collectors selected")
	}
	return e.gc.name, nil
}

func profileFor(flag string) gcProfile {
	for _, p := range gcProfiles {
		if p.flag == flag {
			return p
		}
	}
	return gcProfiles[0]
}

// Apply runs the whole pass: collector selection, compressed oops, heap
// and young generation sizing.
func (e *Ergonomics) Apply() (string, HeapSizing, error) {
	gc, err := e.SelectGC()
	if err != nil {
		return "", HeapSizing{}, err
	}
	e.log.Debug("selected garbage collector", zap.String("gc", gc))

	e.setConservativeMaxHeapAlignment()
	if err := e.setUseCompressedOops(); err != nil {
		return gc, HeapSizing{}, err
	}

	hs, err := e.ComputeHeapSizing(e.host.PhysicalMemory())
	if err != nil {
		return gc, hs, err
	}

	if e.reg.Bool("BytecodeVerificationLocal") && !e.reg.Bool("BytecodeVerificationRemote") {
		e.log.Info("Turning on remote verification because local verification is on")
		e.reg.assignBool("BytecodeVerificationRemote", true)
	}
	return gc, hs, nil
}

func (e *Ergonomics) setConservativeMaxHeapAlignment() {
	e.conservativeMaxAlign = max(e.gc.alignment, e.host.AllocationGranularity(), e.host.PageSize())
}

// oopEncodingHeapMax is the heap span compressed references can address.
func (e *Ergonomics) oopEncodingHeapMax() uint64 {
	return (uint64(math.MaxUint32) + 1) * uint64(e.reg.Int("ObjectAlignmentInBytes"))
}

// MaxHeapForCompressedOops is the largest heap usable with compressed
// references once the null page is accounted for.
func (e *Ergonomics) MaxHeapForCompressedOops() uint64 {
	if e.conservativeMaxAlign == 0 {
		e.setConservativeMaxHeapAlignment()
	}
	return e.oopEncodingHeapMax() - alignUp(e.host.PageSize(), e.conservativeMaxAlign)
}

func (e *Ergonomics) setUseCompressedOops() error {
	requested := max(e.reg.Uint("MaxHeapSize"), e.reg.Uint("InitialHeapSize"), e.reg.Uint("MinHeapSize"))
	if requested <= e.MaxHeapForCompressedOops() {
		if e.reg.IsDefault("UseCompressedOops") {
			return e.reg.setBool("UseCompressedOops", true, OriginErgonomic)
		}
		return nil
	}
	if e.reg.Bool("UseCompressedOops") && !e.reg.IsDefault("UseCompressedOops") {
		e.log.Warn("Max heap size too large for Compressed Oops",
			zap.Uint64("maxHeapSize", requested), zap.Uint64("limit", e.MaxHeapForCompressedOops()))
		e.reg.assignBool("UseCompressedOops", false)
	}
	return nil
}

// limitByAllocatableMemory clamps limit to the share of the commit limit the
// selected collector can reserve.
func (e *Ergonomics) limitByAllocatableMemory(limit uint64) uint64 {
	ratio := e.gc.virtToPhys
	if e.reg.Bool("AggressiveHeap") {
		ratio = 1
	}
	fraction := e.reg.Uint("MaxVirtMemFraction") * ratio
	if fraction == 0 {
		fraction = 1
	}
	return min(limit, e.host.CommitLimit()/fraction)
}

func percentOf(n uint64, pct float64) uint64 {
	return uint64(float64(n) * pct / 100)
}

// ComputeHeapSizing derives the maximum, initial and minimum heap sizes from
// physical memory phys and stores them as ergonomic flag values. Explicitly
// set sizes are kept.
func (e *Ergonomics) ComputeHeapSizing(phys uint64) (HeapSizing, error) {
	if e.conservativeMaxAlign == 0 {
		e.setConservativeMaxHeapAlignment()
	}
	reg := e.reg

	overrideCoopLimit := !reg.IsDefault("MaxRAMPercentage") ||
		!reg.IsDefault("MinRAMPercentage") ||
		!reg.IsDefault("InitialRAMPercentage") ||
		!reg.IsDefault("MaxRAM")
	switch {
	case overrideCoopLimit && reg.IsDefault("MaxRAM"):
		if err := reg.setUint("MaxRAM", phys, OriginErgonomic); err != nil {
			return HeapSizing{}, err
		}
	case reg.IsDefault("MaxRAM"):
		phys = min(phys, reg.Uint("MaxRAM"))
	default:
		phys = reg.Uint("MaxRAM")
	}

	if reg.IsDefault("MaxHeapSize") {
		reasonableMax, err := e.reasonableMaxHeap(phys, overrideCoopLimit)
		if err != nil {
			return HeapSizing{}, err
		}
		e.log.Debug("maximum heap size", zap.Uint64("bytes", reasonableMax))
		if err := reg.setUint("MaxHeapSize", reasonableMax, OriginErgonomic); err != nil {
			return HeapSizing{}, err
		}
	}

	if reg.Uint("InitialHeapSize") == 0 || reg.Uint("MinHeapSize") == 0 {
		maxHeap := reg.Uint("MaxHeapSize")
		reasonableMin := min(reg.Uint("OldSize")+reg.Uint("NewSize"), maxHeap)
		reasonableMin = e.limitByAllocatableMemory(reasonableMin)

		if reg.Uint("InitialHeapSize") == 0 {
			initial := e.limitByAllocatableMemory(percentOf(phys, reg.Double("InitialRAMPercentage")))
			initial = max(initial, reasonableMin, reg.Uint("MinHeapSize"))
			initial = min(initial, maxHeap)
			if err := reg.setUint("InitialHeapSize", initial, OriginErgonomic); err != nil {
				return HeapSizing{}, err
			}
		}
		if reg.Uint("MinHeapSize") == 0 {
			if err := reg.setUint("MinHeapSize", min(reasonableMin, reg.Uint("InitialHeapSize")), OriginErgonomic); err != nil {
				return HeapSizing{}, err
			}
		}
	}

	return e.alignHeap(phys)
}

// reasonableMaxHeap implements the maximum heap rules for an unset
// MaxHeapSize.
func (e *Ergonomics) reasonableMaxHeap(phys uint64, overrideCoopLimit bool) (uint64, error) {
	reg := e.reg

	reasonableMax := percentOf(phys, reg.Double("MaxRAMPercentage"))
	reasonableMin := percentOf(phys, reg.Double("MinRAMPercentage"))
	if reasonableMin < reg.Uint("MaxHeapSize") {
		// Small physical memory.
		reasonableMax = reasonableMin
	} else {
		reasonableMax = max(reasonableMax, reg.Uint("MaxHeapSize"))
	}

	if limit := reg.Uint("ErgoHeapSizeLimit"); !reg.IsDefault("ErgoHeapSizeLimit") && limit != 0 {
		reasonableMax = min(reasonableMax, limit)
	}

	reasonableMax = e.limitByAllocatableMemory(reasonableMax)

	if !reg.IsDefault("InitialHeapSize") {
		reasonableMax = max(reasonableMax, reg.Uint("InitialHeapSize"))
	} else if !reg.IsDefault("MinHeapSize") {
		reasonableMax = max(reasonableMax, reg.Uint("MinHeapSize"))
	}

	if reg.Bool("UseCompressedOops") || reg.Bool("UseCompressedClassPointers") {
		if !reg.IsDefault("HeapBaseMinAddress") && reg.Uint("HeapBaseMinAddress") < e.defaultHeapBase {
			e.log.Debug(fmt.Sprintf("HeapBaseMinAddress must be at least %d (%dG) which is greater than value given %d",
				e.defaultHeapBase, e.defaultHeapBase/giga, reg.Uint("HeapBaseMinAddress")))
			if err := reg.setUint("HeapBaseMinAddress", e.defaultHeapBase, OriginErgonomic); err != nil {
				return 0, err
			}
		}
	}

	if reg.Bool("UseCompressedOops") {
		maxCoopHeap := e.MaxHeapForCompressedOops()
		base := reg.Uint("HeapBaseMinAddress")
		if base+reg.Uint("MaxHeapSize") < maxCoopHeap {
			// Leave room below the heap for zero based compressed oops.
			maxCoopHeap -= base
		}
		if reasonableMax > maxCoopHeap {
			if reg.Lookup("UseCompressedOops").IsErgonomic() && overrideCoopLimit {
				e.log.Info(fmt.Sprintf("UseCompressedOops disabled due to max heap %d > compressed oop heap %d. Please check the setting of MaxRAMPercentage %5.2f.",
					reasonableMax, maxCoopHeap, reg.Double("MaxRAMPercentage")))
				if err := reg.setBool("UseCompressedOops", false, OriginErgonomic); err != nil {
					return 0, err
				}
			} else {
				reasonableMax = min(reasonableMax, maxCoopHeap)
			}
		}
	}
	return reasonableMax, nil
}

// alignHeap rounds the heap sizes up to the heap alignment, sizes the young
// generation and checks the final ordering.
func (e *Ergonomics) alignHeap(phys uint64) (HeapSizing, error) {
	reg := e.reg
	alignment := max(e.gc.alignment, e.host.AllocationGranularity())

	for _, name := range []string{"MaxHeapSize", "InitialHeapSize", "MinHeapSize"} {
		n := reg.Uint(name)
		if aligned := alignUp(n, alignment); aligned != n {
			if err := reg.setUint(name, aligned, OriginErgonomic); err != nil {
				return HeapSizing{}, err
			}
		}
	}

	hs := HeapSizing{
		PhysicalMemory: phys,
		Min:            reg.Uint("MinHeapSize"),
		Initial:        reg.Uint("InitialHeapSize"),
		Max:            reg.Uint("MaxHeapSize"),
		Alignment:      alignment,
		CompressedOops: reg.Bool("UseCompressedOops"),
	}
	if hs.CompressedOops {
		hs.CompressedOopsMax = e.MaxHeapForCompressedOops()
	}

	var violations []Violation
	if hs.Initial > hs.Max {
		violations = append(violations, Violation{
			Flags:   []string{"InitialHeapSize", "MaxHeapSize"},
			Code:    CodeHeapOrder,
			Message: "Initial heap size set to a larger value than the maximum heap size",
		})
	}
	if hs.Min > hs.Initial {
		violations = append(violations, Violation{
			Flags:   []string{"MinHeapSize", "InitialHeapSize"},
			Code:    CodeHeapOrder,
			Message: "Minimum heap size set to a larger value than the initial heap size",
		})
	}
	if len(violations) > 0 {
		return hs, &ValidationError{Violations: violations}
	}

	young, err := e.sizeYoung(hs, alignment)
	if err != nil {
		return hs, err
	}
	hs.Young = young
	return hs, nil
}

// sizeYoung derives NewSize and MaxNewSize from NewRatio when they were not
// set explicitly.
func (e *Ergonomics) sizeYoung(hs HeapSizing, alignment uint64) (uint64, error) {
	reg := e.reg
	ratio := reg.Uint("NewRatio") + 1

	if reg.IsDefault("MaxNewSize") {
		maxYoung := max(alignDown(hs.Max/ratio, alignment), alignment)
		if err := reg.setUint("MaxNewSize", maxYoung, OriginErgonomic); err != nil {
			return 0, err
		}
	}
	if reg.IsDefault("NewSize") {
		young := max(alignDown(hs.Initial/ratio, alignment), alignment)
		young = min(young, reg.Uint("MaxNewSize"))
		if err := reg.setUint("NewSize", young, OriginErgonomic); err != nil {
			return 0, err
		}
	}
	return reg.Uint("NewSize"), nil
}

// setAggressiveHeap applies -XX:+AggressiveHeap. It needs at least 256 MiB
// of physical memory.
func (e *Ergonomics) setAggressiveHeap() error {
	total := e.host.PhysicalMemory()
	if total < aggressiveMin {
		return argError(KindConsistency, "-XX:+AggressiveHeap", "You need at least 256mb of memory to use -XX:+AggressiveHeap")
	}

	heap := e.limitByAllocatableMemory(min(total/2, total-160*mega))
	reg := e.reg
	var setters []flagSetter
	if reg.IsDefault("MaxHeapSize") {
		setters = append(setters, uintSet("MaxHeapSize", heap), uintSet("InitialHeapSize", heap), uintSet("MinHeapSize", heap))
	}
	if reg.IsDefault("NewSize") {
		young := reg.Uint("MaxHeapSize") / 8 * 3
		if reg.IsDefault("MaxHeapSize") {
			young = heap / 8 * 3
		}
		setters = append(setters, uintSet("NewSize", young), uintSet("MaxNewSize", young))
	}
	setters = append(setters,
		boolSet("ResizeTLAB", false),
		uintSet("TLABSize", 256*kilo),
		uintSet("YoungPLABSize", 256*kilo),
		uintSet("OldPLABSize", 8*kilo),
		boolSet("UseParallelGC", true),
		uintSet("ThresholdTolerance", 100),
	)
	for _, set := range setters {
		if err := set(reg, OriginCommandLine); err != nil {
			return argError(KindInvalidValue, "-XX:+AggressiveHeap", "%v", err)
		}
	}
	reg.assignBool("UseLargePages", true)
	return nil
}
