package core

var (
	_ TokenGenerator  = VerificationCodeGenerator{}
	_ Clock           = ClockFunc(nil)
	_ ConfigProvider  = (*CfgxConfigProvider)(nil)
	_ OptionsResolver = GoOptionsResolver{}
)
