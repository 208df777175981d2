package pipeline_test

import (
	"context"
	"errors"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/brewsim/internal/dynamo"
	"github.com/san-kum/brewsim/internal/integrators"
	"github.com/san-kum/brewsim/internal/metrics"
	"github.com/san-kum/brewsim/internal/pipeline"
	"github.com/san-kum/brewsim/internal/stages"
)

type stageLog struct{ names []string }

func (l *stageLog) OnStage(index int, res *stages.Result) { l.names = append(l.names, res.Stage) }

var _ = Describe("Pipeline", func() {
	var (
		solver *integrators.Solver
		params stages.ParameterSet
		x0     dynamo.State
	)

	BeforeEach(func() {
		var err error
		solver, err = integrators.New("rk45", dynamo.DefaultConfig())
		Expect(err).NotTo(HaveOccurred())
		params = stages.DefaultParameterSet()
		x0 = pipeline.DefaultInitial()
	})

	Context("with default parameters", func() {
		var (
			res *pipeline.Result
			log *stageLog
		)

		BeforeEach(func() {
			log = &stageLog{}
			p := pipeline.New(solver,
				pipeline.WithObserver(log),
				pipeline.WithMetrics(metrics.Standard(metrics.DefaultTargets(), params.Fermentation.Temp)...))
			var err error
			res, err = p.Run(context.Background(), x0, params)
			Expect(err).NotTo(HaveOccurred())
		})

		It("runs every stage in process order", func() {
			Expect(log.names).To(Equal(stages.Order))
			Expect(res.Stages).To(HaveLen(len(stages.Order)))
			for i, s := range res.Stages {
				Expect(s.Stage).To(Equal(stages.Order[i]))
			}
		})

		It("produces a monotone global timeline", func() {
			Expect(res.Records).NotTo(BeEmpty())
			Expect(res.Records[0].Time).To(Equal(0.0))
			for i := 1; i < len(res.Records); i++ {
				Expect(res.Records[i].Time).To(BeNumerically(">=", res.Records[i-1].Time))
			}
			total := 0.0
			for _, s := range res.Stages {
				total += s.Duration
			}
			Expect(res.Records[len(res.Records)-1].Time).To(BeNumerically("~", total, 1e-9))
		})

		It("brews a plausible beer", func() {
			final := res.Final
			Expect(final.IsValid()).To(BeTrue())
			Expect(final[dynamo.Ethanol]).To(BeNumerically(">", 20))
			Expect(final[dynamo.Sugar]).To(BeNumerically("<", 20))
			Expect(final[dynamo.Volume]).To(BeNumerically(">=", 18))
			Expect(final[dynamo.Temperature]).To(BeNumerically("~", params.Conditioning.Temp, 0.5))
			Expect(final[dynamo.Starch]).To(BeZero())
			Expect(final[dynamo.Biomass]).To(BeZero())
			Expect(final[dynamo.CO2]).To(BeNumerically("~", stages.CO2Saturation(final[dynamo.Temperature], params.Conditioning.HeadPressure), 0.1))
			Expect(final[dynamo.IsoAlpha]).To(BeNumerically(">", 5))
			Expect(final[dynamo.Energy]).To(BeNumerically(">", 0))
		})

		It("meets the sterilisation hold", func() {
			boil := res.Stage(stages.BoilingStage)
			Expect(boil).NotTo(BeNil())
			Expect(boil.Final[dynamo.Hold]).To(BeNumerically(">=", params.Boiling.MinHold))
		})

		It("keeps every recorded state physical", func() {
			for _, rec := range res.Records {
				for i, v := range rec.State {
					if dynamo.Field(i) == dynamo.Temperature {
						continue
					}
					Expect(v).To(BeNumerically(">=", 0), "%s in %s", dynamo.Field(i), rec.Stage)
				}
			}
		})

		It("reports trace metrics", func() {
			Expect(res.Metrics).To(HaveKey("yield"))
			Expect(res.Metrics["yield"]).To(BeNumerically("~", metrics.EthanolMass(res.Final), 1e-9))
			Expect(res.Metrics["energy"]).To(BeNumerically("~", res.Final[dynamo.Energy], 1e-6))
			Expect(res.Metrics["attenuation"]).To(BeNumerically(">", 0.7))
		})

		It("returns field series over the whole trace", func() {
			times, values := res.Series(dynamo.Ethanol)
			Expect(times).To(HaveLen(len(res.Records)))
			Expect(values[len(values)-1]).To(Equal(res.Final[dynamo.Ethanol]))
		})
	})

	It("is deterministic", func() {
		p := pipeline.New(solver)
		a, err := p.Run(context.Background(), x0, params)
		Expect(err).NotTo(HaveOccurred())
		b, err := p.Run(context.Background(), x0, params)
		Expect(err).NotTo(HaveOccurred())

		Expect(b.Records).To(HaveLen(len(a.Records)))
		Expect(b.Final).To(Equal(a.Final))
	})

	Describe("configuration errors", func() {
		It("rejects a negative rate constant before integrating", func() {
			params.Fermentation.QMax = -0.25
			_, err := pipeline.New(solver).Run(context.Background(), x0, params)
			Expect(errors.Is(err, dynamo.ErrConfiguration)).To(BeTrue())

			var cfgErr *dynamo.ConfigurationError
			Expect(errors.As(err, &cfgErr)).To(BeTrue())
			Expect(cfgErr.Scope).To(Equal(stages.FermentationStage))
			Expect(cfgErr.Name).To(Equal("q_max"))
		})

		DescribeTable("rejects bad initial conditions",
			func(f dynamo.Field, v float64) {
				x0[f] = v
				_, err := pipeline.New(solver).Run(context.Background(), x0, params)
				Expect(errors.Is(err, dynamo.ErrConfiguration)).To(BeTrue())
			},
			Entry("NaN temperature", dynamo.Temperature, math.NaN()),
			Entry("negative grain", dynamo.Mass, -1.0),
			Entry("infinite sugar", dynamo.Sugar, math.Inf(1)),
			Entry("pH below the mash range", dynamo.PH, 1.0),
			Entry("grain above the milling temperature window", dynamo.Temperature, 70.0),
		)

		It("rejects a truncated state", func() {
			_, err := pipeline.New(solver).Run(context.Background(), dynamo.State{18, 0, 0}, params)
			Expect(errors.Is(err, dynamo.ErrConfiguration)).To(BeTrue())
		})
	})

	Describe("stage failures", func() {
		It("tags a handoff that leaves no wort with the receiving stage", func() {
			params.Washing.Absorption = 3
			params.Mashing.WaterRatio = 2

			_, err := pipeline.New(solver).Run(context.Background(), x0, params)
			Expect(err).To(HaveOccurred())

			var failure *pipeline.StageFailure
			Expect(errors.As(err, &failure)).To(BeTrue())
			Expect(failure.Index).To(Equal(2))
			Expect(failure.Stage).To(Equal(stages.WashingStage))
			Expect(errors.Is(err, pipeline.ErrIncompatibleHandoff)).To(BeTrue())
			Expect(failure.LastValid.IsValid()).To(BeTrue())
		})

		It("tags a diverging stage with its index and last valid state", func() {
			cfg := dynamo.DefaultConfig()
			cfg.MaxSteps = 3
			tight, err := integrators.New("rk45", cfg)
			Expect(err).NotTo(HaveOccurred())

			_, err = pipeline.New(tight).Run(context.Background(), x0, params)
			Expect(err).To(HaveOccurred())

			var failure *pipeline.StageFailure
			Expect(errors.As(err, &failure)).To(BeTrue())
			Expect(failure.Index).To(Equal(1))
			Expect(failure.Stage).To(Equal(stages.MashingStage))
			Expect(errors.Is(err, dynamo.ErrNotConverged)).To(BeTrue())

			var div *stages.ModelDivergence
			Expect(errors.As(err, &div)).To(BeTrue())
			Expect(failure.LastValid.IsValid()).To(BeTrue())
			Expect(failure.Time).To(BeNumerically(">=", params.Milling.Duration))
		})

		It("stops between stages when the context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_, err := pipeline.New(solver).Run(ctx, x0, params)
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())
		})
	})
})
